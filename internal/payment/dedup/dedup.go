// Package dedup tracks processed gateway event ids so webhook redelivery is
// idempotent: a replayed event is acknowledged without re-applying state.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"caseflow/pkg/platform/sentinel"
)

// Registry records gateway event ids. MarkProcessed returns true the first
// time an id is seen. Forget releases a claimed id so the next delivery of
// the same event is processed again; callers use it when applying the event
// failed after the slot was claimed.
type Registry interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Memory is the single-process fallback used when redis is not configured.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[eventID]; dup {
		return false, nil
	}
	m.seen[eventID] = struct{}{}
	return true, nil
}

func (m *Memory) Forget(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, eventID)
	return nil
}

// Redis shares the processed set across instances. Entries expire after the
// TTL; gateways stop redelivering long before that.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	first, err := r.client.SetNX(ctx, eventKey(eventID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark processed event: %w: %v", sentinel.ErrUnavailable, err)
	}
	return first, nil
}

func (r *Redis) Forget(ctx context.Context, eventID string) error {
	if err := r.client.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("forget processed event: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func eventKey(eventID string) string {
	return "caseflow:payment:event:" + eventID
}
