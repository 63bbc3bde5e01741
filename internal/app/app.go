// Package app wires configuration into a ready engine.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/RahatInCode/medicamp-public/internal/config"
	"github.com/RahatInCode/medicamp-public/internal/db"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/gateway"
	"github.com/RahatInCode/medicamp-public/internal/metrics"
	"github.com/RahatInCode/medicamp-public/internal/migrate"
	"github.com/RahatInCode/medicamp-public/internal/notify"
)

type App struct {
	Config   *config.Config
	DB       *sqlx.DB
	Engine   engine.Engine
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []func()
}

// Options tune Open for short-lived CLI use.
type Options struct {
	// SkipNATS leaves the NATS notifier out even when configured.
	SkipNATS  bool
	LogOutput io.Writer
}

// Open connects to the store, applies migrations and builds the engine.
func Open(cfg *config.Config, opts Options) (*App, error) {
	logger := NewLogger(cfg.Log, opts.LogOutput)
	conn, err := db.Open(db.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Config: cfg, DB: conn, Logger: logger}
	a.closers = append(a.closers, func() { _ = conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Registry = reg

	e := engine.New(conn, cfg, NewGateway(cfg.Gateway))
	e.Metrics = metrics.New(reg)
	e.Logger = logger

	notifiers := notify.Multi{notify.Log{Logger: logger}}
	if url := strings.TrimSpace(cfg.Notify.NATSURL); url != "" && !opts.SkipNATS {
		n, closeFn, err := notify.DialNATS(url, cfg.Notify.SubjectPrefix, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closeFn)
		notifiers = append(notifiers, n)
	}
	e.Notifier = notifiers
	a.Engine = e
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewGateway selects the payment gateway named by cfg.Kind.
func NewGateway(cfg config.GatewayConfig) gateway.Gateway {
	if cfg.Kind == "checkout" {
		return gateway.NewCheckout(cfg.BaseURL, cfg.SecretKey, cfg.SuccessURL, cfg.CancelURL, cfg.Timeout())
	}
	return gateway.Local{SuccessURL: cfg.SuccessURL}
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
