package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/domain"
)

const feedbackColumns = `id,registration_id,camp_id,participant_id,participant_name,rating,comment,approved,created_at,approved_at`

// InsertFeedback returns ErrConflict when the registration already has feedback.
func (r Repo) InsertFeedback(ctx context.Context, q sqlx.ExtContext, f domain.Feedback) error {
	_, err := exec(ctx, q, `INSERT INTO feedback(`+feedbackColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.RegistrationID, f.CampID, f.ParticipantID, f.ParticipantName, f.Rating, f.Comment, boolInt(f.Approved), f.CreatedAt, f.ApprovedAt)
	return err
}

func (r Repo) GetFeedback(ctx context.Context, q sqlx.ExtContext, id string) (domain.Feedback, error) {
	var f domain.Feedback
	err := get(ctx, q, &f, `SELECT `+feedbackColumns+` FROM feedback WHERE id=?`, id)
	return f, err
}

func (r Repo) GetFeedbackByRegistration(ctx context.Context, q sqlx.ExtContext, registrationID string) (domain.Feedback, error) {
	var f domain.Feedback
	err := get(ctx, q, &f, `SELECT `+feedbackColumns+` FROM feedback WHERE registration_id=?`, registrationID)
	return f, err
}

// ApproveFeedback flips an unapproved feedback to approved. ErrConflict means it already was.
func (r Repo) ApproveFeedback(ctx context.Context, q sqlx.ExtContext, id, at string) error {
	n, err := exec(ctx, q, `UPDATE feedback SET approved=1, approved_at=? WHERE id=? AND approved=0`, at, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (r Repo) DeleteFeedback(ctx context.Context, q sqlx.ExtContext, id string) error {
	n, err := exec(ctx, q, `DELETE FROM feedback WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type FeedbackFilter struct {
	CampID       string
	OrganizerID  string
	ApprovedOnly bool
	Limit        int
}

func (r Repo) ListFeedback(ctx context.Context, q sqlx.ExtContext, f FeedbackFilter) ([]domain.Feedback, error) {
	query := `SELECT ` + prefixed("f", feedbackColumns) + ` FROM feedback f`
	var (
		where []string
		args  []any
	)
	if f.OrganizerID != "" {
		query += ` JOIN camps c ON c.id = f.camp_id`
		where = append(where, "c.organizer_id=?")
		args = append(args, f.OrganizerID)
	}
	if f.CampID != "" {
		where = append(where, "f.camp_id=?")
		args = append(args, f.CampID)
	}
	if f.ApprovedOnly {
		where = append(where, "f.approved=1")
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY f.created_at DESC, f.id`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	res := []domain.Feedback{}
	if err := selectAll(ctx, q, &res, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}
