package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestBatcher_FlushesFullBatch(t *testing.T) {
	var flushes atomic.Int64
	var mu sync.Mutex
	var sizes []int

	b := NewBatcher(3, time.Hour, func(_ context.Context, keys []string) (map[string]int, error) {
		flushes.Add(1)
		mu.Lock()
		sizes = append(sizes, len(keys))
		mu.Unlock()

		out := make(map[string]int, len(keys))
		for _, k := range keys {
			out[k] = len(k)
		}
		return out, nil
	})

	var g errgroup.Group
	for _, key := range []string{"a", "bb", "ccc"} {
		g.Go(func() error {
			val, err := b.Lookup(context.Background(), key)
			if err != nil {
				return err
			}
			if val != len(key) {
				return eris.Errorf("key %q resolved to %d", key, val)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), flushes.Load(), "a full batch flushes once")
	assert.Equal(t, []int{3}, sizes)
}

func TestBatcher_IntervalFlushesPartialBatch(t *testing.T) {
	b := NewBatcher(100, 10*time.Millisecond, func(_ context.Context, keys []string) (map[string]int, error) {
		out := make(map[string]int)
		for _, k := range keys {
			out[k] = 1
		}
		return out, nil
	})

	start := time.Now()
	val, err := b.Lookup(context.Background(), "lonely")
	require.NoError(t, err)
	assert.Equal(t, 1, val)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond,
		"partial batch waits out the interval")
}

func TestBatcher_DuplicateKeysShareOneSlot(t *testing.T) {
	var keysSeen atomic.Int64
	release := make(chan struct{})
	// The flush blocks until released so every duplicate lookup provably
	// joins the in-flight batch.
	b := NewBatcher(2, time.Hour, func(_ context.Context, keys []string) (map[string]int, error) {
		<-release
		keysSeen.Add(int64(len(keys)))
		out := make(map[string]int)
		for _, k := range keys {
			out[k] = 42
		}
		return out, nil
	})

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			val, err := b.Lookup(context.Background(), "same")
			if err != nil {
				return err
			}
			if val != 42 {
				return eris.Errorf("got %d", val)
			}
			return nil
		})
	}
	g.Go(func() error {
		_, err := b.Lookup(context.Background(), "other")
		return err
	})

	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(2), keysSeen.Load(), "an in-flight key is never fetched twice")
}

func TestBatcher_MissingKeyFailsIndividually(t *testing.T) {
	b := NewBatcher(2, time.Hour, func(_ context.Context, keys []string) (map[string]int, error) {
		return map[string]int{"present": 1}, nil
	})

	var g errgroup.Group
	var presentErr, missingErr error
	g.Go(func() error {
		_, presentErr = b.Lookup(context.Background(), "present")
		return nil
	})
	g.Go(func() error {
		_, missingErr = b.Lookup(context.Background(), "missing")
		return nil
	})
	require.NoError(t, g.Wait())

	assert.NoError(t, presentErr)
	assert.True(t, eris.Is(missingErr, ErrNoResult))
}

func TestBatcher_FlushErrorFailsWholeBatch(t *testing.T) {
	b := NewBatcher(2, time.Hour, func(context.Context, []string) (map[string]int, error) {
		return nil, eris.New("registry down")
	})

	var g errgroup.Group
	errs := make([]error, 2)
	for i, key := range []string{"a", "b"} {
		g.Go(func() error {
			_, errs[i] = b.Lookup(context.Background(), key)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, err := range errs {
		assert.ErrorContains(t, err, "registry down")
	}
}

func TestLookupOnce_DeduplicatesConcurrentCallers(t *testing.T) {
	b := NewBatcher[string, int](10, time.Hour, nil)

	var calls atomic.Int64
	release := make(chan struct{})

	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			val, err := b.LookupOnce(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			if err != nil {
				return err
			}
			if val != 7 {
				return eris.Errorf("got %d", val)
			}
			return nil
		})
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1), calls.Load())
}
