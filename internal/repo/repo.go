package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/db"
	"github.com/RahatInCode/medicamp-public/internal/domain"
)

// Repo reads and writes lifecycle records. Methods taking a sqlx.ExtContext
// run against either the pool or an open transaction.
type Repo struct {
	DB *sqlx.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique-index violation or a stale version.
	ErrConflict = errors.New("conflict")
)

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ",")
}

const campColumns = `id,name,fee,currency,scheduled_at,location,healthcare_professional,description,organizer_id,organizer_email,participant_count,created_at,deleted_at`

func (r Repo) InsertCamp(ctx context.Context, q sqlx.ExtContext, c domain.Camp) error {
	_, err := exec(ctx, q, `INSERT INTO camps(`+campColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Fee, c.Currency, c.ScheduledAt, c.Location, c.HealthcareProfessional, c.Description,
		c.OrganizerID, c.OrganizerEmail, c.ParticipantCount, c.CreatedAt, c.DeletedAt)
	return err
}

// GetCamp returns a live camp; soft-deleted camps are reported as not found.
func (r Repo) GetCamp(ctx context.Context, q sqlx.ExtContext, id string) (domain.Camp, error) {
	var c domain.Camp
	err := get(ctx, q, &c, `SELECT `+campColumns+` FROM camps WHERE id=? AND deleted_at IS NULL`, id)
	return c, err
}

// CampOrganizer returns the organizer of a camp whether or not it was deleted.
func (r Repo) CampOrganizer(ctx context.Context, q sqlx.ExtContext, id string) (string, error) {
	var organizerID string
	err := get(ctx, q, &organizerID, `SELECT organizer_id FROM camps WHERE id=?`, id)
	return organizerID, err
}

type CampFilter struct {
	OrganizerID string
	Search      string
	Limit       int
}

func (r Repo) ListCamps(ctx context.Context, q sqlx.ExtContext, f CampFilter) ([]domain.Camp, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)
	if f.OrganizerID != "" {
		where = append(where, "organizer_id=?")
		args = append(args, f.OrganizerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(location) LIKE ? OR LOWER(healthcare_professional) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like, like)
	}
	query := `SELECT ` + campColumns + ` FROM camps WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	res := []domain.Camp{}
	if err := selectAll(ctx, q, &res, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) SoftDeleteCamp(ctx context.Context, q sqlx.ExtContext, id, at string) error {
	n, err := exec(ctx, q, `UPDATE camps SET deleted_at=? WHERE id=? AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustParticipantCount moves the camp's counter by delta in a single statement.
func (r Repo) AdjustParticipantCount(ctx context.Context, q sqlx.ExtContext, campID string, delta int64) error {
	n, err := exec(ctx, q, `UPDATE camps SET participant_count = participant_count + ? WHERE id=?`, delta, campID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type EventFilter struct {
	CampID  string
	AfterID int64
	Type    string
	Limit   int
}

func (r Repo) ListEvents(ctx context.Context, q sqlx.ExtContext, f EventFilter) ([]domain.Event, error) {
	var (
		where = []string{"id > ?"}
		args  = []any{f.AfterID}
	)
	if f.CampID != "" {
		where = append(where, "camp_id=?")
		args = append(args, f.CampID)
	}
	if f.Type != "" {
		where = append(where, "type=?")
		args = append(args, f.Type)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id,ts,type,camp_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE %s ORDER BY id ASC LIMIT %d`,
		strings.Join(where, " AND "), limit)
	res := []domain.Event{}
	if err := selectAll(ctx, q, &res, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// EventsAfter returns up to limit events with id greater than after.
func (r Repo) EventsAfter(ctx context.Context, limit int, after int64) ([]domain.Event, error) {
	return r.ListEvents(ctx, r.DB, EventFilter{AfterID: after, Limit: limit})
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := get(ctx, r.DB, &id, `SELECT MAX(id) FROM events`); err != nil {
		return 0, err
	}
	return id.Int64, nil
}
