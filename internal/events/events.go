// Package events is the append-only audit log for case activity. Appends are
// best-effort from the caller's point of view: a failed append is logged and
// swallowed so it can never fail the operation that produced it.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types recorded by the case lifecycle.
const (
	TypeCaseCreated            = "case_created"
	TypeCaseUpdated            = "case_updated"
	TypeCheckoutSessionCreated = "checkout_session_created"
	TypePaymentCompleted       = "payment_completed"
)

// Event is an audit record. Events are never updated or deleted.
type Event struct {
	// ID deduplicates appends. Callers reacting to external deliveries (the
	// payment webhook) set it to the upstream event id so redelivery cannot
	// append twice; otherwise it is minted here.
	ID        string
	Token     string
	Type      string
	Data      map[string]any
	Timestamp time.Time
}

// Store persists events. Append must be idempotent per event ID.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByToken(ctx context.Context, token string, limit int) ([]Event, error)
}

// Outbox exposes unpublished events for the Kafka relay. Implemented by the
// same stores that implement Store.
type Outbox interface {
	NextUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Log is the write facade handed to services.
type Log struct {
	store  Store
	logger *slog.Logger
}

func NewLog(store Store, logger *slog.Logger) *Log {
	return &Log{store: store, logger: logger}
}

// Record appends an event, filling in ID and Timestamp when absent. Errors
// are logged and dropped: the audit trail is not allowed to take down the
// operation it documents.
func (l *Log) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := l.store.Append(ctx, event); err != nil {
		l.logger.WarnContext(ctx, "event append failed",
			"token", event.Token,
			"type", event.Type,
			"error", err,
		)
	}
}
