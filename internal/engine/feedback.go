package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
	"github.com/RahatInCode/medicamp-public/internal/events"
	"github.com/RahatInCode/medicamp-public/internal/notify"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

const maxCommentLength = 2000

// SubmitFeedback records the participant's rating for a paid visit.
// Feedback starts unapproved and is hidden from the public list.
func (e Engine) SubmitFeedback(ctx context.Context, actor auth.Identity, registrationID string, rating int, comment string) (fb domain.Feedback, err error) {
	ctx, done := e.track(ctx, "submit_feedback", registrationAttr(registrationID))
	defer func() {
		err = done(err, &notify.Outcome{CampID: fb.CampID, RegistrationID: registrationID, ActorID: actor.ID})
	}()

	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return domain.Feedback{}, domain.InvalidInput("Comment is too long")
	}
	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		reg, err := e.loadRegistration(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		fb.CampID = reg.CampID
		if err := auth.RequireParticipant(actor, reg); err != nil {
			return err
		}
		if err := reg.FeedbackEligible(); err != nil {
			return err
		}
		if _, err := e.Repo.GetFeedbackByRegistration(ctx, tx, registrationID); err == nil {
			return domain.ErrDuplicateFeedback
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := domain.ValidateRating(rating); err != nil {
			return err
		}
		fb = domain.Feedback{
			ID:              uuid.NewString(),
			RegistrationID:  reg.ID,
			CampID:          reg.CampID,
			ParticipantID:   reg.ParticipantID,
			ParticipantName: reg.Name,
			Rating:          rating,
			Comment:         comment,
			CreatedAt:       e.timestamp(),
		}
		if err := e.Repo.InsertFeedback(ctx, tx, fb); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return domain.ErrDuplicateFeedback
			}
			return err
		}
		return e.events().Append(ctx, tx, events.FeedbackSubmitted, reg.CampID, "feedback", fb.ID, actor.ID, events.EventPayload{
			"registration_id": reg.ID,
			"rating":          rating,
		})
	})
	if err != nil {
		return fb, err
	}
	return fb, nil
}

func (e Engine) ApproveFeedback(ctx context.Context, actor auth.Identity, id string) (fb domain.Feedback, err error) {
	ctx, done := e.track(ctx, "approve_feedback")
	defer func() { err = done(err, &notify.Outcome{CampID: fb.CampID, ActorID: actor.ID}) }()

	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := e.loadFeedbackForOrganizer(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		fb = cur
		if cur.Approved {
			return domain.ErrAlreadyApproved
		}
		now := e.timestamp()
		if err := e.Repo.ApproveFeedback(ctx, tx, id, now); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return domain.ErrAlreadyApproved
			}
			return err
		}
		fb.Approved = true
		fb.ApprovedAt = &now
		return e.events().Append(ctx, tx, events.FeedbackApproved, cur.CampID, "feedback", id, actor.ID, nil)
	})
	if err != nil {
		return fb, err
	}
	return fb, nil
}

// DeleteFeedback removes feedback regardless of its approval state.
func (e Engine) DeleteFeedback(ctx context.Context, actor auth.Identity, id string) (err error) {
	var campID string
	ctx, done := e.track(ctx, "delete_feedback")
	defer func() { err = done(err, &notify.Outcome{CampID: campID, ActorID: actor.ID}) }()

	return e.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := e.loadFeedbackForOrganizer(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		campID = cur.CampID
		if err := e.Repo.DeleteFeedback(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.ErrFeedbackNotFound
			}
			return err
		}
		return e.events().Append(ctx, tx, events.FeedbackDeleted, cur.CampID, "feedback", id, actor.ID, events.EventPayload{
			"registration_id": cur.RegistrationID,
			"approved":        cur.Approved,
		})
	})
}

func (e Engine) loadFeedbackForOrganizer(ctx context.Context, q sqlx.ExtContext, actor auth.Identity, id string) (domain.Feedback, error) {
	fb, err := e.Repo.GetFeedback(ctx, q, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Feedback{}, domain.ErrFeedbackNotFound
		}
		return domain.Feedback{}, err
	}
	organizerID, err := e.campOrganizer(ctx, q, fb.CampID)
	if err != nil {
		return domain.Feedback{}, err
	}
	if !isCampOrganizer(actor, organizerID) {
		return domain.Feedback{}, domain.ErrNotOrganizerOfCamp
	}
	return fb, nil
}

// ListPublicFeedback returns approved feedback, optionally for one camp.
func (e Engine) ListPublicFeedback(ctx context.Context, campID string, limit int) (res []domain.Feedback, err error) {
	ctx, done := e.track(ctx, "list_public_feedback", campAttr(campID))
	defer func() { err = done(err, nil) }()

	return e.Repo.ListFeedback(ctx, e.DB, repo.FeedbackFilter{CampID: campID, ApprovedOnly: true, Limit: limit})
}

// ListCampFeedback returns all feedback, approved or not, for the organizer's
// camps or for one of them.
func (e Engine) ListCampFeedback(ctx context.Context, actor auth.Identity, campID string) (res []domain.Feedback, err error) {
	ctx, done := e.track(ctx, "list_camp_feedback", campAttr(campID))
	defer func() { err = done(err, nil) }()

	if err := auth.RequireOrganizerRole(actor); err != nil {
		return nil, err
	}
	f := repo.FeedbackFilter{OrganizerID: actor.ID}
	if campID != "" {
		organizerID, err := e.campOrganizer(ctx, e.DB, campID)
		if err != nil {
			return nil, err
		}
		if !isCampOrganizer(actor, organizerID) {
			return nil, domain.ErrNotOrganizerOfCamp
		}
		f = repo.FeedbackFilter{CampID: campID}
	}
	return e.Repo.ListFeedback(ctx, e.DB, f)
}

func (e Engine) ListEvents(ctx context.Context, f repo.EventFilter) (res []domain.Event, err error) {
	ctx, done := e.track(ctx, "list_events")
	defer func() { err = done(err, nil) }()

	return e.Repo.ListEvents(ctx, e.DB, f)
}

// ListCampEvents returns the audit trail of one camp to its organizer.
func (e Engine) ListCampEvents(ctx context.Context, actor auth.Identity, f repo.EventFilter) (res []domain.Event, err error) {
	ctx, done := e.track(ctx, "list_camp_events", campAttr(f.CampID))
	defer func() { err = done(err, nil) }()

	if err := auth.RequireOrganizerRole(actor); err != nil {
		return nil, err
	}
	if f.CampID == "" {
		return nil, domain.InvalidInput("camp_id is required")
	}
	organizerID, err := e.campOrganizer(ctx, e.DB, f.CampID)
	if err != nil {
		return nil, err
	}
	if !isCampOrganizer(actor, organizerID) {
		return nil, domain.ErrNotOrganizerOfCamp
	}
	return e.Repo.ListEvents(ctx, e.DB, f)
}
