package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_AllowsUpToMax(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiter_ClientsAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "client-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	current := time.Now()
	limiter.now = func() time.Time { return current }

	allowed, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Advance past the window: the budget is fresh.
	current = current.Add(time.Minute + time.Second)

	allowed, err = limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
