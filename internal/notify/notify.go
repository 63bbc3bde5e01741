// Package notify reports lifecycle outcomes to users and other systems.
// Delivery is best effort and never changes the outcome being reported.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// Outcome describes the result of one lifecycle operation.
type Outcome struct {
	Operation      string `json:"operation"`
	Success        bool   `json:"success"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message"`
	CampID         string `json:"camp_id,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	ActorID        string `json:"actor_id,omitempty"`
	TS             string `json:"ts"`
}

type Notifier interface {
	Notify(ctx context.Context, o Outcome)
}

// Nop drops every outcome.
type Nop struct{}

func (Nop) Notify(context.Context, Outcome) {}

// Log writes outcomes to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, o Outcome) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if !o.Success {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, o.Message,
		"operation", o.Operation,
		"success", o.Success,
		"code", o.Code,
		"camp_id", o.CampID,
		"registration_id", o.RegistrationID,
		"actor_id", o.ActorID)
}

// Publisher is the subset of *nats.Conn used for notifications.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes each outcome as JSON on <prefix>.<operation>.
type NATS struct {
	Conn   Publisher
	Prefix string
	Logger *slog.Logger
}

// DialNATS connects to url and returns a notifier and a close func.
func DialNATS(url, prefix string, logger *slog.Logger) (*NATS, func(), error) {
	conn, err := nats.Connect(url, nats.Name("medicamp"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	closeFn := func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}
	return &NATS{Conn: conn, Prefix: prefix, Logger: logger}, closeFn, nil
}

func (n *NATS) Subject(operation string) string {
	prefix := strings.Trim(n.Prefix, ".")
	if prefix == "" {
		prefix = "medicamp"
	}
	return prefix + "." + operation
}

func (n *NATS) Notify(ctx context.Context, o Outcome) {
	data, err := json.Marshal(o)
	if err != nil {
		n.logger().Warn("notify: marshal outcome failed", "error", err)
		return
	}
	if err := n.Conn.Publish(n.Subject(o.Operation), data); err != nil {
		n.logger().WarnContext(ctx, "notify: publish failed", "subject", n.Subject(o.Operation), "error", err)
	}
}

func (n *NATS) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Multi fans an outcome out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, o Outcome) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, o)
		}
	}
}
