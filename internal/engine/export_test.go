package engine

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/RahatInCode/medicamp-public/internal/domain"
)

// WithBeforeCompleteSession returns e with fn run between reading a session
// and completing it during a payment callback.
func WithBeforeCompleteSession(e Engine, fn func(ctx context.Context, tx *sqlx.Tx, sess domain.PaymentSession) error) Engine {
	e.beforeCompleteSession = fn
	return e
}
