package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	token, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.True(t, store.TryConsume(ctx, token))
	assert.False(t, store.TryConsume(ctx, token), "a consumed token must never validate again")
	assert.False(t, store.TryConsume(ctx, token))
}

func TestMemoryUnknownToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	assert.False(t, store.TryConsume(ctx, "never-issued"))
	assert.False(t, store.TryConsume(ctx, ""))
}

func TestMemoryTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := store.Create(ctx)
		require.NoError(t, err)
		require.False(t, seen[token])
		seen[token] = true
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWithTTL(30 * time.Millisecond)

	token, err := store.Create(ctx)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	assert.False(t, store.TryConsume(ctx, token), "an expired token must not validate even if never consumed")
}

func TestMemoryConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	token, err := store.Create(ctx)
	require.NoError(t, err)

	const attempts = 32
	var successes int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if store.TryConsume(ctx, token) {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes, "concurrent consumption attempts must not both succeed")
}
