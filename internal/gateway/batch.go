package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"
)

// ErrNoResult is returned for a key the flush function produced no value for.
var ErrNoResult = eris.New("gateway: batch produced no result for key")

// FlushFunc resolves one batch of keys to values. Keys absent from the
// returned map fail individually with ErrNoResult; an error fails every
// key in the batch.
type FlushFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Batcher accumulates same-typed lookups and flushes them together when
// either the batch reaches MaxSize or FlushInterval elapses, whichever
// comes first. Concurrent lookups for the same key share one pending
// result, so an identifier is never fetched twice in flight.
type Batcher[K comparable, V any] struct {
	flushFn  FlushFunc[K, V]
	maxSize  int
	interval time.Duration

	group singleflight.Group

	mu      sync.Mutex
	pending map[K]*batchCall[V]
	queue   []K
	timer   *time.Timer
}

type batchCall[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// NewBatcher creates a Batcher. maxSize must be positive; interval zero
// defaults to 200ms.
func NewBatcher[K comparable, V any](maxSize int, interval time.Duration, flush FlushFunc[K, V]) *Batcher[K, V] {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Batcher[K, V]{
		flushFn:  flush,
		maxSize:  maxSize,
		interval: interval,
		pending:  make(map[K]*batchCall[V]),
	}
}

// Lookup resolves one key, joining any in-flight request for the same key.
func (b *Batcher[K, V]) Lookup(ctx context.Context, key K) (V, error) {
	call := b.enqueue(key)

	select {
	case <-call.done:
		return call.val, call.err
	case <-ctx.Done():
		var zero V
		return zero, eris.Wrap(ctx.Err(), "gateway: batch lookup")
	}
}

// enqueue registers the key, triggering a flush when the batch is full or
// arming the interval timer for a partial batch.
func (b *Batcher[K, V]) enqueue(key K) *batchCall[V] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if call, ok := b.pending[key]; ok {
		return call
	}

	call := &batchCall[V]{done: make(chan struct{})}
	b.pending[key] = call
	b.queue = append(b.queue, key)

	if len(b.queue) >= b.maxSize {
		b.flushLocked()
	} else if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.flushTimer)
	}

	return call
}

func (b *Batcher[K, V]) flushTimer() {
	b.mu.Lock()
	b.flushLocked()
	b.mu.Unlock()
}

// flushLocked snapshots the current queue and resolves it asynchronously.
// Pending entries stay registered until resolved so late arrivals for the
// same key still join the in-flight result.
func (b *Batcher[K, V]) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.queue) == 0 {
		return
	}

	keys := b.queue
	b.queue = nil

	go b.resolve(keys)
}

func (b *Batcher[K, V]) resolve(keys []K) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, err := b.flushFn(ctx, keys)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		call, ok := b.pending[key]
		if !ok {
			continue
		}
		delete(b.pending, key)

		switch {
		case err != nil:
			call.err = err
		default:
			if val, found := results[key]; found {
				call.val = val
			} else {
				call.err = ErrNoResult
			}
		}
		close(call.done)
	}
}

// LookupOnce resolves a key outside of batching but still deduplicates
// concurrent callers, for providers without a batch endpoint.
func (b *Batcher[K, V]) LookupOnce(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (V, error) {
	val, err, _ := b.group.Do(keyString(key), func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return val.(V), nil
}

func keyString[K comparable](key K) string {
	return fmt.Sprintf("%v", key)
}
