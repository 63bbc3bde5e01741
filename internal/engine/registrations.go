package engine

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/config"
	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
	"github.com/RahatInCode/medicamp-public/internal/events"
	"github.com/RahatInCode/medicamp-public/internal/notify"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

func validateDetails(actor auth.Identity, d domain.ParticipantDetails) (domain.ParticipantDetails, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	if d.Name == "" {
		d.Name = actor.Name
	}
	if d.Email == "" {
		d.Email = actor.Email
	}
	if d.Name == "" {
		return d, domain.InvalidInput("Participant name is required")
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		return d, domain.InvalidInput("A valid participant email is required")
	}
	if d.Age < 0 || d.Age > 150 {
		return d, domain.InvalidInput("Age must be between 0 and 150")
	}
	return d, nil
}

// CreateRegistration joins the participant to a camp. The uniqueness check
// and the insert happen in one statement guarded by a partial unique index.
func (e Engine) CreateRegistration(ctx context.Context, actor auth.Identity, campID string, details domain.ParticipantDetails) (reg domain.Registration, err error) {
	ctx, done := e.track(ctx, "create_registration", campAttr(campID))
	defer func() { err = done(err, &notify.Outcome{CampID: campID, RegistrationID: reg.ID, ActorID: actor.ID}) }()

	if actor.ID == "" || actor.IsOrganizer() {
		return domain.Registration{}, domain.ErrForbidden.WithMetadata("required_role", string(auth.RoleParticipant))
	}
	details, err = validateDetails(actor, details)
	if err != nil {
		return domain.Registration{}, err
	}
	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		camp, err := e.Repo.GetCamp(ctx, tx, campID)
		if err != nil {
			return campErr(err)
		}
		now := e.timestamp()
		reg = domain.Registration{
			ID:                     uuid.NewString(),
			CampID:                 camp.ID,
			ParticipantID:          actor.ID,
			ParticipantDetails:     details,
			CampName:               camp.Name,
			CampFee:                camp.Fee,
			Currency:               camp.Currency,
			Location:               camp.Location,
			HealthcareProfessional: camp.HealthcareProfessional,
			PaymentStatus:          domain.PaymentUnpaid,
			ConfirmationStatus:     domain.ConfirmationPending,
			Counted:                e.countOn() == config.CountOnRegistration,
			Version:                1,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := e.Repo.InsertRegistration(ctx, tx, reg); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return domain.ErrDuplicateRegistration
			}
			return err
		}
		if reg.Counted {
			if err := e.Repo.AdjustParticipantCount(ctx, tx, camp.ID, 1); err != nil {
				return err
			}
		}
		return e.events().Append(ctx, tx, events.RegistrationCreated, camp.ID, "registration", reg.ID, actor.ID, events.EventPayload{
			"participant_id": actor.ID,
			"camp_fee":       reg.CampFee,
		})
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

// CancelRegistration cancels on behalf of the participant or the camp organizer.
func (e Engine) CancelRegistration(ctx context.Context, actor auth.Identity, id string) (reg domain.Registration, err error) {
	ctx, done := e.track(ctx, "cancel_registration", registrationAttr(id))
	defer func() { err = done(err, &notify.Outcome{CampID: reg.CampID, RegistrationID: id, ActorID: actor.ID}) }()

	err = e.withRetry(func() error {
		return e.inTx(ctx, func(tx *sqlx.Tx) error {
			cur, err := e.loadRegistration(ctx, tx, id)
			if err != nil {
				return err
			}
			reg = cur
			organizerID, err := e.campOrganizer(ctx, tx, cur.CampID)
			if err != nil {
				return err
			}
			byOrganizer := isCampOrganizer(actor, organizerID)
			if !byOrganizer && actor.ID != cur.ParticipantID {
				if actor.IsOrganizer() {
					return domain.ErrNotOrganizerOfCamp
				}
				return domain.ErrForbidden
			}
			next, err := cur.Cancel(byOrganizer, actor.ID, e.timestamp())
			if err != nil {
				return err
			}
			if err := domain.ValidateTransition(cur.State(), next.State()); err != nil {
				return err
			}
			released := false
			if e.releaseOnCancel() && next.Counted {
				next.Counted = false
				released = true
				if err := e.Repo.AdjustParticipantCount(ctx, tx, cur.CampID, -1); err != nil {
					return err
				}
			}
			next, err = e.Repo.UpdateRegistration(ctx, tx, next)
			if err != nil {
				return err
			}
			if _, err := e.Repo.TransitionSessions(ctx, tx, id, domain.SessionOpen, domain.SessionVoid); err != nil {
				return err
			}
			reg = next
			return e.events().Append(ctx, tx, events.RegistrationCancelled, cur.CampID, "registration", id, actor.ID, events.EventPayload{
				"from_state":   string(cur.State()),
				"by_organizer": byOrganizer,
				"released":     released,
			})
		})
	})
	if err != nil {
		return reg, err
	}
	return reg, nil
}

// ConfirmRegistration records organizer confirmation. It does not require payment.
func (e Engine) ConfirmRegistration(ctx context.Context, actor auth.Identity, id string) (reg domain.Registration, err error) {
	ctx, done := e.track(ctx, "confirm", registrationAttr(id))
	defer func() { err = done(err, &notify.Outcome{CampID: reg.CampID, RegistrationID: id, ActorID: actor.ID}) }()

	err = e.withRetry(func() error {
		return e.inTx(ctx, func(tx *sqlx.Tx) error {
			cur, err := e.loadRegistration(ctx, tx, id)
			if err != nil {
				return err
			}
			reg = cur
			organizerID, err := e.campOrganizer(ctx, tx, cur.CampID)
			if err != nil {
				return err
			}
			if !isCampOrganizer(actor, organizerID) {
				return domain.ErrNotOrganizerOfCamp
			}
			next, err := cur.Confirm(e.timestamp())
			if err != nil {
				return err
			}
			if err := domain.ValidateTransition(cur.State(), next.State()); err != nil {
				return err
			}
			next, err = e.Repo.UpdateRegistration(ctx, tx, next)
			if err != nil {
				return err
			}
			reg = next
			return e.events().Append(ctx, tx, events.RegistrationConfirmed, cur.CampID, "registration", id, actor.ID, events.EventPayload{
				"paid": next.Paid(),
			})
		})
	})
	if err != nil {
		return reg, err
	}
	return reg, nil
}

// GetRegistration is visible to its participant and to the camp organizer.
func (e Engine) GetRegistration(ctx context.Context, actor auth.Identity, id string) (reg domain.Registration, err error) {
	ctx, done := e.track(ctx, "get_registration", registrationAttr(id))
	defer func() { err = done(err, nil) }()

	reg, err = e.loadRegistration(ctx, e.DB, id)
	if err != nil {
		return domain.Registration{}, err
	}
	if actor.ID == reg.ParticipantID {
		return reg, nil
	}
	organizerID, err := e.campOrganizer(ctx, e.DB, reg.CampID)
	if err != nil {
		return domain.Registration{}, err
	}
	if !isCampOrganizer(actor, organizerID) {
		return domain.Registration{}, domain.ErrForbidden
	}
	return reg, nil
}

// ListParticipantRegistrations returns the caller's own registrations.
func (e Engine) ListParticipantRegistrations(ctx context.Context, actor auth.Identity, includeCancelled bool) (res []domain.Registration, err error) {
	ctx, done := e.track(ctx, "list_participant_registrations")
	defer func() { err = done(err, nil) }()

	if actor.ID == "" {
		return nil, domain.ErrForbidden
	}
	return e.Repo.ListRegistrations(ctx, e.DB, repo.RegistrationFilter{
		ParticipantID:    actor.ID,
		IncludeCancelled: includeCancelled,
	})
}

// ListCampRegistrations returns registrations for one camp, or for every camp
// of the organizer when campID is empty.
func (e Engine) ListCampRegistrations(ctx context.Context, actor auth.Identity, campID string, includeCancelled bool) (res []domain.Registration, err error) {
	ctx, done := e.track(ctx, "list_camp_registrations", campAttr(campID))
	defer func() { err = done(err, nil) }()

	if err := auth.RequireOrganizerRole(actor); err != nil {
		return nil, err
	}
	f := repo.RegistrationFilter{IncludeCancelled: includeCancelled}
	if campID == "" {
		f.OrganizerID = actor.ID
	} else {
		organizerID, err := e.campOrganizer(ctx, e.DB, campID)
		if err != nil {
			return nil, err
		}
		if !isCampOrganizer(actor, organizerID) {
			return nil, domain.ErrNotOrganizerOfCamp
		}
		f.CampID = campID
	}
	return e.Repo.ListRegistrations(ctx, e.DB, f)
}

func (e Engine) loadRegistration(ctx context.Context, q sqlx.ExtContext, id string) (domain.Registration, error) {
	reg, err := e.Repo.GetRegistration(ctx, q, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Registration{}, domain.ErrRegistrationNotFound
		}
		return domain.Registration{}, fmt.Errorf("load registration %s: %w", id, err)
	}
	return reg, nil
}
