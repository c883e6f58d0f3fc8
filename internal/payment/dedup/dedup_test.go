package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/pkg/platform/sentinel"
)

func TestMemoryMarkProcessed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := m.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := m.MarkProcessed(ctx, "evt_2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryForgetReopensSlot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, m.Forget(ctx, "evt_1"))

	again, err := m.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisUnreachableReadsAsUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedis(client, time.Minute)
	_, err := r.MarkProcessed(context.Background(), "evt_x")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	assert.ErrorIs(t, r.Forget(context.Background(), "evt_x"), sentinel.ErrUnavailable)
}

// Exactly one concurrent caller may win the first-seen slot.
func TestMemoryMarkProcessedConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const callers = 32
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := m.MarkProcessed(ctx, "evt_race")
			require.NoError(t, err)
			wins <- first
		}()
	}
	wg.Wait()
	close(wins)

	var firsts int
	for w := range wins {
		if w {
			firsts++
		}
	}
	assert.Equal(t, 1, firsts)
}
