package events

import (
	"context"
	"log/slog"
	"time"
)

// Producer publishes an event to the downstream bus.
type Producer interface {
	Produce(ctx context.Context, event Event) error
}

// Relay drains the outbox into the Producer on a fixed interval. It is
// deliberately at-least-once: an event is marked published only after the
// produce call succeeds, so consumers must tolerate duplicates.
type Relay struct {
	outbox   Outbox
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(outbox Outbox, producer Producer, logger *slog.Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Relay{
		outbox:   outbox,
		producer: producer,
		logger:   logger,
		interval: interval,
		batch:    100,
	}
}

// Run loops until ctx is cancelled. Publish failures are logged and retried
// on the next tick; they never stop the relay.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	pending, err := r.outbox.NextUnpublished(ctx, r.batch)
	if err != nil {
		r.logger.WarnContext(ctx, "outbox read failed", "error", err)
		return
	}

	var published []string
	for _, event := range pending {
		if err := r.producer.Produce(ctx, event); err != nil {
			r.logger.WarnContext(ctx, "event publish failed",
				"event_id", event.ID,
				"type", event.Type,
				"error", err,
			)
			break
		}
		published = append(published, event.ID)
	}

	if len(published) == 0 {
		return
	}
	if err := r.outbox.MarkPublished(ctx, published); err != nil {
		r.logger.WarnContext(ctx, "mark published failed", "error", err)
	}
}
