package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	CampCreated           = "camp.created"
	CampDeleted           = "camp.deleted"
	RegistrationCreated   = "registration.created"
	RegistrationCancelled = "registration.cancelled"
	RegistrationConfirmed = "registration.confirmed"
	PaymentInitiated      = "payment.initiated"
	PaymentSucceeded      = "payment.succeeded"
	PaymentOrphaned       = "payment.orphaned"
	FeedbackSubmitted     = "feedback.submitted"
	FeedbackApproved      = "feedback.approved"
	FeedbackDeleted       = "feedback.deleted"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside q, normally the transaction of the change it describes.
func (w Writer) Append(ctx context.Context, q sqlx.ExtContext, evtType, campID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = q.ExecContext(ctx, q.Rebind(`INSERT INTO events(ts,type,camp_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`),
		ts, evtType, nullable(campID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
