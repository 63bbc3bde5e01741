package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
	"github.com/RahatInCode/medicamp-public/internal/events"
	"github.com/RahatInCode/medicamp-public/internal/notify"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

// CampInput are the organizer-supplied fields of a camp.
type CampInput struct {
	Name                   string
	Fee                    int64
	Currency               string
	ScheduledAt            string
	Location               string
	HealthcareProfessional string
	Description            string
}

func (in CampInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.InvalidInput("Camp name is required")
	}
	if in.Fee < 0 {
		return domain.InvalidInput("Camp fee cannot be negative")
	}
	if _, err := time.Parse(time.RFC3339, in.ScheduledAt); err != nil {
		return domain.InvalidInput("Camp schedule must be an RFC3339 timestamp")
	}
	if strings.TrimSpace(in.Location) == "" {
		return domain.InvalidInput("Camp location is required")
	}
	if strings.TrimSpace(in.HealthcareProfessional) == "" {
		return domain.InvalidInput("Healthcare professional is required")
	}
	return nil
}

func (e Engine) CreateCamp(ctx context.Context, actor auth.Identity, in CampInput) (c domain.Camp, err error) {
	ctx, done := e.track(ctx, "create_camp")
	defer func() { err = done(err, &notify.Outcome{CampID: c.ID, ActorID: actor.ID}) }()

	if err := auth.RequireOrganizerRole(actor); err != nil {
		return domain.Camp{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Camp{}, err
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "usd"
	}
	c = domain.Camp{
		ID:                     uuid.NewString(),
		Name:                   strings.TrimSpace(in.Name),
		Fee:                    in.Fee,
		Currency:               currency,
		ScheduledAt:            in.ScheduledAt,
		Location:               strings.TrimSpace(in.Location),
		HealthcareProfessional: strings.TrimSpace(in.HealthcareProfessional),
		Description:            in.Description,
		OrganizerID:            actor.ID,
		OrganizerEmail:         actor.Email,
		CreatedAt:              e.timestamp(),
	}
	err = e.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := e.Repo.InsertCamp(ctx, tx, c); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.CampCreated, c.ID, "camp", c.ID, actor.ID, events.EventPayload{
			"name": c.Name,
			"fee":  c.Fee,
		})
	})
	if err != nil {
		return domain.Camp{}, err
	}
	return c, nil
}

// DeleteCamp hides the camp from listings and new registrations.
// Existing registrations keep their snapshot.
func (e Engine) DeleteCamp(ctx context.Context, actor auth.Identity, id string) (err error) {
	ctx, done := e.track(ctx, "delete_camp", campAttr(id))
	defer func() { err = done(err, &notify.Outcome{CampID: id, ActorID: actor.ID}) }()

	return e.inTx(ctx, func(tx *sqlx.Tx) error {
		c, err := e.Repo.GetCamp(ctx, tx, id)
		if err != nil {
			return campErr(err)
		}
		if err := auth.RequireCampOrganizer(actor, c); err != nil {
			return err
		}
		if err := e.Repo.SoftDeleteCamp(ctx, tx, id, e.timestamp()); err != nil {
			return campErr(err)
		}
		return e.events().Append(ctx, tx, events.CampDeleted, id, "camp", id, actor.ID, nil)
	})
}

func (e Engine) GetCamp(ctx context.Context, id string) (c domain.Camp, err error) {
	ctx, done := e.track(ctx, "get_camp", campAttr(id))
	defer func() { err = done(err, nil) }()

	c, err = e.Repo.GetCamp(ctx, e.DB, id)
	if err != nil {
		return domain.Camp{}, campErr(err)
	}
	return c, nil
}

func (e Engine) ListCamps(ctx context.Context, f repo.CampFilter) (res []domain.Camp, err error) {
	ctx, done := e.track(ctx, "list_camps")
	defer func() { err = done(err, nil) }()

	return e.Repo.ListCamps(ctx, e.DB, f)
}

// campOrganizer resolves the organizer of a camp, including deleted camps.
func (e Engine) campOrganizer(ctx context.Context, q sqlx.ExtContext, campID string) (string, error) {
	id, err := e.Repo.CampOrganizer(ctx, q, campID)
	if err != nil {
		return "", campErr(err)
	}
	return id, nil
}

func isCampOrganizer(actor auth.Identity, organizerID string) bool {
	return actor.IsOrganizer() && actor.ID != "" && actor.ID == organizerID
}

func campErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ErrCampNotFound
	}
	return err
}
