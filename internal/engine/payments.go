package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
	"github.com/RahatInCode/medicamp-public/internal/events"
	"github.com/RahatInCode/medicamp-public/internal/gateway"
	"github.com/RahatInCode/medicamp-public/internal/notify"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

type PaymentStart struct {
	SessionID    string              `json:"session_id"`
	RedirectURL  string              `json:"redirect_url"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Registration domain.Registration `json:"registration"`
}

// InitiatePayment asks the gateway for a checkout session and makes it the
// registration's active session. Earlier open sessions are superseded.
func (e Engine) InitiatePayment(ctx context.Context, actor auth.Identity, registrationID string) (res PaymentStart, err error) {
	ctx, done := e.track(ctx, "initiate_payment", registrationAttr(registrationID))
	defer func() {
		err = done(err, &notify.Outcome{CampID: res.Registration.CampID, RegistrationID: registrationID, ActorID: actor.ID})
	}()

	reg, err := e.loadRegistration(ctx, e.DB, registrationID)
	if err != nil {
		return res, err
	}
	res.Registration = reg
	if err := auth.RequireParticipant(actor, reg); err != nil {
		return res, err
	}
	// Surface Cancelled/AlreadyPaid before talking to the gateway.
	if _, err := reg.BeginPayment("", e.timestamp()); err != nil {
		return res, err
	}
	if e.Gateway == nil {
		return res, domain.Wrap(domain.ErrGatewayFailure, errors.New("no payment gateway configured"))
	}
	session, err := e.Gateway.CreateSession(ctx, gateway.SessionRequest{
		CorrelationID:  reg.ID,
		CampID:         reg.CampID,
		CampName:       reg.CampName,
		Amount:         reg.CampFee,
		Currency:       reg.Currency,
		CustomerEmail:  reg.Email,
		IdempotencyKey: idempotencyKey(reg),
	})
	if err != nil {
		return res, domain.Wrap(domain.ErrGatewayFailure, err)
	}

	err = e.withRetry(func() error {
		return e.inTx(ctx, func(tx *sqlx.Tx) error {
			cur, err := e.loadRegistration(ctx, tx, registrationID)
			if err != nil {
				return err
			}
			now := e.timestamp()
			next, err := cur.BeginPayment(session.ID, now)
			if err != nil {
				return err
			}
			if err := domain.ValidateTransition(cur.State(), next.State()); err != nil {
				return err
			}
			superseded, err := e.Repo.TransitionSessions(ctx, tx, registrationID, domain.SessionOpen, domain.SessionSuperseded)
			if err != nil {
				return err
			}
			if err := e.Repo.InsertSession(ctx, tx, domain.PaymentSession{
				ID:             session.ID,
				RegistrationID: registrationID,
				CampID:         cur.CampID,
				Amount:         cur.CampFee,
				Currency:       cur.Currency,
				RedirectURL:    session.RedirectURL,
				Status:         domain.SessionOpen,
				CreatedAt:      now,
			}); err != nil {
				if errors.Is(err, repo.ErrConflict) {
					return domain.Wrap(domain.ErrGatewayFailure, errors.New("gateway reused a session id"))
				}
				return err
			}
			next, err = e.Repo.UpdateRegistration(ctx, tx, next)
			if err != nil {
				return err
			}
			res.Registration = next
			return e.events().Append(ctx, tx, events.PaymentInitiated, cur.CampID, "registration", registrationID, actor.ID, events.EventPayload{
				"session_id": session.ID,
				"amount":     cur.CampFee,
				"superseded": superseded,
			})
		})
	})
	if err != nil {
		return res, err
	}
	res.SessionID = session.ID
	res.RedirectURL = session.RedirectURL
	res.Amount = res.Registration.CampFee
	res.Currency = res.Registration.Currency
	return res, nil
}

type CallbackInput struct {
	SessionID     string
	CampID        string
	TransactionID string
}

type CallbackResult struct {
	// Applied is false when the registration was already paid.
	Applied      bool                `json:"applied"`
	Registration domain.Registration `json:"registration"`
}

// idempotencyKey is stable while the registration is unchanged, so a retried
// initiation reuses the gateway session; re-initiation after a session was
// recorded gets a new key.
func idempotencyKey(reg domain.Registration) string {
	return fmt.Sprintf("%s:%d", reg.ID, reg.Version)
}

// HandlePaymentCallback applies a gateway success notification. Repeated
// deliveries for a paid registration succeed without side effects.
func (e Engine) HandlePaymentCallback(ctx context.Context, in CallbackInput) (res CallbackResult, err error) {
	ctx, done := e.track(ctx, "payment_callback")
	defer func() {
		err = done(err, &notify.Outcome{CampID: in.CampID, RegistrationID: res.Registration.ID, ActorID: res.Registration.ParticipantID})
	}()

	if in.SessionID == "" {
		return res, domain.ErrUnknownSession
	}
	if e.callbacks == nil {
		return e.applyCallback(ctx, in)
	}
	led := false
	v, err, _ := e.callbacks.Do(in.SessionID+"|"+in.CampID, func() (any, error) {
		led = true
		return e.applyCallback(ctx, in)
	})
	if r, ok := v.(CallbackResult); ok {
		res = r
		// Only the delivery that ran the update applied it.
		if !led {
			res.Applied = false
		}
	}
	return res, err
}

func (e Engine) applyCallback(ctx context.Context, in CallbackInput) (CallbackResult, error) {
	var (
		res      CallbackResult
		orphaned bool
	)
	err := e.withRetry(func() error {
		orphaned = false
		return e.inTx(ctx, func(tx *sqlx.Tx) error {
			sess, err := e.Repo.GetSession(ctx, tx, in.SessionID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return domain.ErrUnknownSession
				}
				return err
			}
			if sess.CampID != in.CampID {
				return domain.ErrUnknownSession
			}
			cur, err := e.loadRegistration(ctx, tx, sess.RegistrationID)
			if err != nil {
				return err
			}
			res.Registration = cur
			now := e.timestamp()
			next, err := cur.MarkPaid(sess.ID, in.TransactionID, now)
			switch {
			case errors.Is(err, domain.ErrAlreadyPaid):
				e.ignored("already_paid")
				return nil
			case errors.Is(err, domain.ErrRegistrationCancelled):
				// Money arrived for a cancelled registration; keep a record for reconciliation.
				orphaned = true
				e.ignored("cancelled")
				txn := in.TransactionID
				if txn == "" {
					txn = sess.ID
				}
				recorded, err := e.Repo.RecordOrphanedPayment(ctx, tx, sess.ID, txn, now)
				if err != nil || !recorded {
					return err
				}
				return e.events().Append(ctx, tx, events.PaymentOrphaned, cur.CampID, "registration", cur.ID, cur.ParticipantID, events.EventPayload{
					"session_id":     sess.ID,
					"transaction_id": txn,
					"amount":         sess.Amount,
				})
			case err != nil:
				e.ignored("superseded")
				return err
			}
			if err := domain.ValidateTransition(cur.State(), next.State()); err != nil {
				return err
			}
			if e.beforeCompleteSession != nil {
				if err := e.beforeCompleteSession(ctx, tx, sess); err != nil {
					return err
				}
			}
			// A conflict means another delivery or a cancel changed the session
			// after it was read; withRetry re-reads and re-evaluates.
			if err := e.Repo.CompleteSession(ctx, tx, sess.ID, *next.TransactionID, now); err != nil {
				return err
			}
			if !next.Counted {
				next.Counted = true
				if err := e.Repo.AdjustParticipantCount(ctx, tx, cur.CampID, 1); err != nil {
					return err
				}
			}
			next, err = e.Repo.UpdateRegistration(ctx, tx, next)
			if err != nil {
				return err
			}
			res.Registration = next
			res.Applied = true
			return e.events().Append(ctx, tx, events.PaymentSucceeded, cur.CampID, "registration", cur.ID, cur.ParticipantID, events.EventPayload{
				"session_id":     sess.ID,
				"transaction_id": *next.TransactionID,
				"amount":         sess.Amount,
			})
		})
	})
	if err != nil {
		return res, err
	}
	if orphaned {
		return res, domain.ErrRegistrationCancelled
	}
	if res.Applied && e.Metrics != nil {
		e.Metrics.CallbacksApplied.Inc()
	}
	return res, nil
}

func (e Engine) ignored(reason string) {
	if e.Metrics != nil {
		e.Metrics.CallbacksIgnored.WithLabelValues(reason).Inc()
	}
}

// PaymentRecord is one line of a participant's payment history.
type PaymentRecord struct {
	RegistrationID     string                    `json:"registration_id"`
	CampID             string                    `json:"camp_id"`
	CampName           string                    `json:"camp_name"`
	Amount             int64                     `json:"amount"`
	Currency           string                    `json:"currency"`
	TransactionID      string                    `json:"transaction_id"`
	PaidAt             string                    `json:"paid_at" format:"date-time"`
	ConfirmationStatus domain.ConfirmationStatus `json:"confirmation_status"`
	Cancelled          bool                      `json:"cancelled"`
}

func (e Engine) PaymentHistory(ctx context.Context, actor auth.Identity) (res []PaymentRecord, err error) {
	ctx, done := e.track(ctx, "payment_history")
	defer func() { err = done(err, nil) }()

	if actor.ID == "" {
		return nil, domain.ErrForbidden
	}
	regs, err := e.Repo.ListRegistrations(ctx, e.DB, repo.RegistrationFilter{
		ParticipantID:    actor.ID,
		PaidOnly:         true,
		IncludeCancelled: true,
	})
	if err != nil {
		return nil, err
	}
	res = make([]PaymentRecord, 0, len(regs))
	for _, r := range regs {
		rec := PaymentRecord{
			RegistrationID:     r.ID,
			CampID:             r.CampID,
			CampName:           r.CampName,
			Amount:             r.CampFee,
			Currency:           r.Currency,
			ConfirmationStatus: r.ConfirmationStatus,
			Cancelled:          r.Cancelled,
		}
		if r.TransactionID != nil {
			rec.TransactionID = *r.TransactionID
		}
		if r.PaidAt != nil {
			rec.PaidAt = *r.PaidAt
		}
		res = append(res, rec)
	}
	return res, nil
}

// ListSessions returns the payment attempts of a registration.
func (e Engine) ListSessions(ctx context.Context, actor auth.Identity, registrationID string) (res []domain.PaymentSession, err error) {
	if _, err := e.GetRegistration(ctx, actor, registrationID); err != nil {
		return nil, err
	}
	ctx, done := e.track(ctx, "list_sessions", registrationAttr(registrationID))
	defer func() { err = done(err, nil) }()

	return e.Repo.ListSessions(ctx, e.DB, registrationID)
}
