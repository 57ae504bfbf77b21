package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleepContext(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, SleepContext(ctx, time.Millisecond))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, SleepContext(cancelled, time.Minute), context.Canceled)
}

func TestIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.False(t, IsCanceled(ctx))
	cancel()
	assert.True(t, IsCanceled(ctx))
}

func TestTimeDiff(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(1500*time.Millisecond + 300*time.Microsecond)
	assert.Equal(t, 1500*time.Millisecond, TimeDiff(t1, t0))
}
