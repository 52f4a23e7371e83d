package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_AllowsUpToCapacityImmediately(t *testing.T) {
	l := New(map[string]BucketConfig{
		"maps.textsearch": {Capacity: 2, RefillPerSecond: 1, MaxWait: time.Second},
	})
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "maps.textsearch"))
	require.NoError(t, l.Acquire(ctx, "maps.textsearch"))
}

func TestAcquire_BlocksUntilRefill(t *testing.T) {
	l := New(map[string]BucketConfig{
		"llm.text": {Capacity: 1, RefillPerSecond: 20, MaxWait: time.Second},
	})
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "llm.text"))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "llm.text"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	l := New(map[string]BucketConfig{
		"browser": {Capacity: 1, RefillPerSecond: 0.01, MaxWait: time.Minute},
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Acquire(ctx, "browser"))

	cancel()
	err := l.Acquire(ctx, "browser")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_MaxWaitTimesOut(t *testing.T) {
	l := New(map[string]BucketConfig{
		"browser": {Capacity: 1, RefillPerSecond: 0.001, MaxWait: 50 * time.Millisecond},
	})
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "browser"))

	err := l.Acquire(ctx, "browser")
	assert.ErrorIs(t, err, model.ErrTimedOut)
}

func TestAcquire_UnknownKey(t *testing.T) {
	l := New(map[string]BucketConfig{})
	err := l.Acquire(context.Background(), "unknown")
	assert.Error(t, err)
}
