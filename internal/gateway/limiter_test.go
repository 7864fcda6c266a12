package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Acquire(1), "token %d within burst", i)
	}
	assert.False(t, l.Acquire(1), "bucket exhausted after burst")
}

func TestLimiter_ConcurrentAcquiresNeverOverdraw(t *testing.T) {
	const burst = 10
	l := NewLimiter(0.001, burst) // effectively no refill during the test

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(1) {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(burst), granted.Load(),
		"grants over the interval must not exceed bucket capacity")
}

func TestLimiter_WaitBlocksUntilRefill(t *testing.T) {
	l := NewLimiter(100, 1)
	require.True(t, l.Acquire(1))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), 1))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond,
		"second token waits for the 10ms refill")
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.1, 1)
	require.True(t, l.Acquire(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, 1)
	assert.Error(t, err, "wait aborts when the deadline fires before refill")
}

func TestLimiter_Tokens(t *testing.T) {
	l := NewLimiter(1, 5)
	assert.InDelta(t, 5, l.Tokens(), 0.01)

	require.True(t, l.Acquire(3))
	assert.InDelta(t, 2, l.Tokens(), 0.1)
}
