package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/domain"
)

const sessionColumns = `id,registration_id,camp_id,amount,currency,redirect_url,status,transaction_id,created_at,completed_at`

func (r Repo) InsertSession(ctx context.Context, q sqlx.ExtContext, s domain.PaymentSession) error {
	_, err := exec(ctx, q, `INSERT INTO payment_sessions(`+sessionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.RegistrationID, s.CampID, s.Amount, s.Currency, s.RedirectURL, string(s.Status), s.TransactionID, s.CreatedAt, s.CompletedAt)
	return err
}

func (r Repo) GetSession(ctx context.Context, q sqlx.ExtContext, id string) (domain.PaymentSession, error) {
	var s domain.PaymentSession
	err := get(ctx, q, &s, `SELECT `+sessionColumns+` FROM payment_sessions WHERE id=?`, id)
	return s, err
}

func (r Repo) ListSessions(ctx context.Context, q sqlx.ExtContext, registrationID string) ([]domain.PaymentSession, error) {
	res := []domain.PaymentSession{}
	if err := selectAll(ctx, q, &res, `SELECT `+sessionColumns+` FROM payment_sessions WHERE registration_id=? ORDER BY created_at ASC, id`, registrationID); err != nil {
		return nil, err
	}
	return res, nil
}

// TransitionSessions moves every session of the registration in status from to status to.
func (r Repo) TransitionSessions(ctx context.Context, q sqlx.ExtContext, registrationID string, from, to domain.SessionStatus) (int64, error) {
	return exec(ctx, q, `UPDATE payment_sessions SET status=? WHERE registration_id=? AND status=?`,
		string(to), registrationID, string(from))
}

// CompleteSession marks an open session completed. ErrConflict means it was not open.
// RecordOrphanedPayment stamps a payment that arrived for a cancelled
// registration onto its session. It reports false when one was already recorded.
func (r Repo) RecordOrphanedPayment(ctx context.Context, q sqlx.ExtContext, id, transactionID, at string) (bool, error) {
	n, err := exec(ctx, q, `UPDATE payment_sessions SET transaction_id=?, completed_at=? WHERE id=? AND completed_at IS NULL`,
		transactionID, at, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) CompleteSession(ctx context.Context, q sqlx.ExtContext, id, transactionID, at string) error {
	n, err := exec(ctx, q, `UPDATE payment_sessions SET status=?, transaction_id=?, completed_at=? WHERE id=? AND status=?`,
		string(domain.SessionCompleted), transactionID, at, id, string(domain.SessionOpen))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
