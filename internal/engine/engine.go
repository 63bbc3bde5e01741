package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/RahatInCode/medicamp-public/internal/config"
	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/events"
	"github.com/RahatInCode/medicamp-public/internal/gateway"
	"github.com/RahatInCode/medicamp-public/internal/metrics"
	"github.com/RahatInCode/medicamp-public/internal/notify"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

// maxAttempts bounds re-reads after an optimistic version conflict.
const maxAttempts = 5

var tracer trace.Tracer = otel.Tracer("github.com/RahatInCode/medicamp-public/internal/engine")

type Engine struct {
	DB       *sqlx.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Gateway  gateway.Gateway
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time

	callbacks *singleflight.Group
	// beforeCompleteSession runs between reading a session and completing it.
	beforeCompleteSession func(ctx context.Context, tx *sqlx.Tx, sess domain.PaymentSession) error
}

func New(db *sqlx.DB, cfg *config.Config, gw gateway.Gateway) Engine {
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{},
		Config:    cfg,
		Gateway:   gw,
		Notifier:  notify.Nop{},
		Metrics:   metrics.New(nil),
		Logger:    slog.Default(),
		Now:       time.Now,
		callbacks: &singleflight.Group{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) countOn() string {
	if e.Config == nil || e.Config.Capacity.CountOn == "" {
		return config.CountOnPayment
	}
	return e.Config.Capacity.CountOn
}

func (e Engine) releaseOnCancel() bool {
	return e.Config != nil && e.Config.Capacity.ReleaseOnCancel
}

// inTx runs fn in a transaction and commits when fn succeeds.
func (e Engine) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.ErrStoreUnavailable, err)
	}
	return nil
}

// withRetry re-runs fn while it reports a stale registration version.
func (e Engine) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, repo.ErrConflict) {
			return err
		}
		if e.Metrics != nil {
			e.Metrics.RetryConflicts.Inc()
		}
	}
	return domain.Wrap(domain.ErrStoreUnavailable, fmt.Errorf("gave up after %d version conflicts: %w", maxAttempts, err))
}

// normalize turns any non-lifecycle error into StoreUnavailable.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.Wrap(domain.ErrStoreUnavailable, err)
}

var successMessages = map[string]string{
	"create_camp":         "Camp created",
	"delete_camp":         "Camp deleted",
	"create_registration": "Registered for the camp",
	"cancel_registration": "Registration cancelled",
	"initiate_payment":    "Redirecting to payment",
	"payment_callback":    "Payment successful",
	"confirm":             "Registration confirmed",
	"submit_feedback":     "Thanks for your feedback",
	"approve_feedback":    "Feedback approved",
	"delete_feedback":     "Feedback deleted",
}

// track opens a span for op. The returned func normalizes err, records
// metrics and, when outcome is non-nil, notifies after the work is done.
func (e Engine) track(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(err error, outcome *notify.Outcome) error) {
	start := e.now()
	ctx, span := tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error, outcome *notify.Outcome) error {
		err = normalize(err)
		code := "OK"
		var de *domain.Error
		if errors.As(err, &de) {
			code = string(de.Code)
		} else if err != nil {
			code = "CANCELED"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, code)
		}
		span.SetAttributes(attribute.String("medicamp.result", code))
		span.End()
		if e.Metrics != nil {
			e.Metrics.Operations.WithLabelValues(op, code).Inc()
			e.Metrics.Duration.WithLabelValues(op).Observe(e.now().Sub(start).Seconds())
		}
		if de != nil && de.Kind == domain.KindUpstream {
			e.logger().ErrorContext(ctx, "operation failed", "operation", op, "code", code, "error", err)
		}
		if outcome != nil && e.Notifier != nil {
			o := *outcome
			o.Operation = op
			o.Success = err == nil
			o.TS = e.timestamp()
			if err == nil {
				o.Message = successMessages[op]
			} else if de != nil {
				o.Code = code
				o.Message = de.Message
			} else {
				o.Code = code
				o.Message = err.Error()
			}
			e.Notifier.Notify(ctx, o)
		}
		return err
	}
}

func campAttr(id string) attribute.KeyValue {
	return attribute.String("medicamp.camp_id", id)
}

func registrationAttr(id string) attribute.KeyValue {
	return attribute.String("medicamp.registration_id", id)
}
