package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store used in tests and single-shot CLI runs
// that do not need persistence.
type MemoryStore struct {
	counters
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func memKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[memKey(namespace, key)]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		s.miss()
		return nil, ErrNotFound
	}
	s.hit()
	return entry.value, nil
}

func (s *MemoryStore) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[memKey(namespace, key)] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	delete(s.entries, memKey(namespace, key))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetMany(ctx context.Context, namespace string, keys []string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, err := s.Get(ctx, namespace, k); err == nil {
			found[k] = v
		}
	}
	return found, nil
}

func (s *MemoryStore) SetMany(ctx context.Context, namespace string, values map[string][]byte, ttl time.Duration) error {
	for k, v := range values {
		if err := s.Set(ctx, namespace, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context) (int, error) {
	now := time.Now()
	removed := 0
	s.mu.Lock()
	for k, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }
