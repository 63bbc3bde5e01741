package repo

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/domain"
)

const registrationColumns = `id,camp_id,participant_id,participant_name,participant_email,age,phone,gender,emergency_contact,` +
	`camp_name,camp_fee,currency,location,healthcare_professional,payment_status,confirmation_status,cancelled,counted,` +
	`active_session_id,transaction_id,version,created_at,updated_at,paid_at,confirmed_at,cancelled_at,cancelled_by`

// InsertRegistration returns ErrConflict when the participant already holds
// an active registration for the camp.
func (r Repo) InsertRegistration(ctx context.Context, q sqlx.ExtContext, reg domain.Registration) error {
	_, err := exec(ctx, q, `INSERT INTO registrations(`+registrationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		reg.ID, reg.CampID, reg.ParticipantID, reg.Name, reg.Email, reg.Age, reg.Phone, reg.Gender, reg.EmergencyContact,
		reg.CampName, reg.CampFee, reg.Currency, reg.Location, reg.HealthcareProfessional,
		string(reg.PaymentStatus), string(reg.ConfirmationStatus), boolInt(reg.Cancelled), boolInt(reg.Counted),
		reg.ActiveSessionID, reg.TransactionID, reg.Version, reg.CreatedAt, reg.UpdatedAt,
		reg.PaidAt, reg.ConfirmedAt, reg.CancelledAt, reg.CancelledBy)
	return err
}

func (r Repo) GetRegistration(ctx context.Context, q sqlx.ExtContext, id string) (domain.Registration, error) {
	var reg domain.Registration
	err := get(ctx, q, &reg, `SELECT `+registrationColumns+` FROM registrations WHERE id=?`, id)
	return reg, err
}

// UpdateRegistration writes reg if the stored version still equals
// reg.Version and bumps it. A stale version yields ErrConflict.
func (r Repo) UpdateRegistration(ctx context.Context, q sqlx.ExtContext, reg domain.Registration) (domain.Registration, error) {
	n, err := exec(ctx, q, `UPDATE registrations SET
payment_status=?, confirmation_status=?, cancelled=?, counted=?, active_session_id=?, transaction_id=?,
version=version+1, updated_at=?, paid_at=?, confirmed_at=?, cancelled_at=?, cancelled_by=?
WHERE id=? AND version=?`,
		string(reg.PaymentStatus), string(reg.ConfirmationStatus), boolInt(reg.Cancelled), boolInt(reg.Counted),
		reg.ActiveSessionID, reg.TransactionID, reg.UpdatedAt, reg.PaidAt, reg.ConfirmedAt, reg.CancelledAt, reg.CancelledBy,
		reg.ID, reg.Version)
	if err != nil {
		return reg, err
	}
	if n == 0 {
		return reg, ErrConflict
	}
	reg.Version++
	return reg, nil
}

type RegistrationFilter struct {
	CampID           string
	ParticipantID    string
	OrganizerID      string
	PaidOnly         bool
	IncludeCancelled bool
}

func (r Repo) ListRegistrations(ctx context.Context, q sqlx.ExtContext, f RegistrationFilter) ([]domain.Registration, error) {
	query := `SELECT ` + prefixed("r", registrationColumns) + ` FROM registrations r`
	var (
		where []string
		args  []any
	)
	if f.OrganizerID != "" {
		query += ` JOIN camps c ON c.id = r.camp_id`
		where = append(where, "c.organizer_id=?")
		args = append(args, f.OrganizerID)
	}
	if f.CampID != "" {
		where = append(where, "r.camp_id=?")
		args = append(args, f.CampID)
	}
	if f.ParticipantID != "" {
		where = append(where, "r.participant_id=?")
		args = append(args, f.ParticipantID)
	}
	if f.PaidOnly {
		where = append(where, "r.payment_status=?")
		args = append(args, string(domain.PaymentPaid))
	}
	if !f.IncludeCancelled {
		where = append(where, "r.cancelled=0")
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.PaidOnly {
		query += ` ORDER BY r.paid_at DESC, r.id`
	} else {
		query += ` ORDER BY r.created_at DESC, r.id`
	}
	res := []domain.Registration{}
	if err := selectAll(ctx, q, &res, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}
