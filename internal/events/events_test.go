package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInMemoryAppendIsIdempotentPerID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	require.NoError(t, store.Append(ctx, Event{ID: "e1", Token: "case_a", Type: TypeCaseCreated}))
	require.NoError(t, store.Append(ctx, Event{ID: "e1", Token: "case_a", Type: TypeCaseCreated}))
	require.NoError(t, store.Append(ctx, Event{ID: "e2", Token: "case_a", Type: TypeCaseUpdated}))

	got, err := store.ListByToken(ctx, "case_a", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestInMemoryListByTokenNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	require.NoError(t, store.Append(ctx, Event{ID: "e1", Token: "case_a", Type: TypeCaseCreated}))
	require.NoError(t, store.Append(ctx, Event{ID: "e2", Token: "case_b", Type: TypeCaseCreated}))
	require.NoError(t, store.Append(ctx, Event{ID: "e3", Token: "case_a", Type: TypeCaseUpdated}))

	got, err := store.ListByToken(ctx, "case_a", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e1", got[1].ID)

	limited, err := store.ListByToken(ctx, "case_a", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "e3", limited[0].ID)
}

func TestLogRecordFillsIDAndSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	log := NewLog(store, discardLogger())

	log.Record(ctx, Event{Token: "case_a", Type: TypeCaseCreated})

	got, err := store.ListByToken(ctx, "case_a", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())

	// A failing store must not propagate.
	failing := NewLog(failingStore{}, discardLogger())
	failing.Record(ctx, Event{Token: "case_a", Type: TypeCaseCreated})
}

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error { return errors.New("down") }
func (failingStore) ListByToken(context.Context, string, int) ([]Event, error) {
	return nil, errors.New("down")
}

// countingProducer fails the first n produce calls.
type countingProducer struct {
	failures int
	produced []string
}

func (p *countingProducer) Produce(_ context.Context, event Event) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.produced = append(p.produced, event.ID)
	return nil
}

func TestRelayDrain(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	require.NoError(t, store.Append(ctx, Event{ID: "e1", Token: "case_a", Type: TypeCaseCreated}))
	require.NoError(t, store.Append(ctx, Event{ID: "e2", Token: "case_a", Type: TypeCaseUpdated}))

	producer := &countingProducer{}
	relay := NewRelay(store, producer, discardLogger(), 0)

	relay.drain(ctx)
	assert.Equal(t, []string{"e1", "e2"}, producer.produced)

	// Everything published; a second drain produces nothing new.
	relay.drain(ctx)
	assert.Equal(t, []string{"e1", "e2"}, producer.produced)
}

func TestRelayRetriesFailedPublishOnNextTick(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	require.NoError(t, store.Append(ctx, Event{ID: "e1", Token: "case_a", Type: TypeCaseCreated}))

	producer := &countingProducer{failures: 1}
	relay := NewRelay(store, producer, discardLogger(), 0)

	relay.drain(ctx)
	assert.Empty(t, producer.produced)

	relay.drain(ctx)
	assert.Equal(t, []string{"e1"}, producer.produced)
}
