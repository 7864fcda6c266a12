package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "validation", "10.1234/x", []byte("v"), time.Minute))

	got, err := s.Get(ctx, "validation", "10.1234/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// Namespaces are isolated.
	_, err = s.Get(ctx, "collab", "10.1234/x")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "k", []byte("v"), -time.Second))

	_, err := s.Get(ctx, "ns", "k")
	assert.True(t, eris.Is(err, ErrNotFound), "expired entries read as missing")

	removed, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestMemoryStore_Stats(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "k", []byte("v"), time.Minute))

	_, _ = s.Get(ctx, "ns", "k")
	_, _ = s.Get(ctx, "ns", "missing")

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryStore_GetManySetMany(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SetMany(ctx, "ns", map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, time.Minute))

	found, err := s.GetMany(ctx, "ns", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, []byte("1"), found["a"])
	assert.NotContains(t, found, "c")
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ns", "k", []byte("v"), time.Minute))
	require.NoError(t, s.Delete(ctx, "ns", "k"))

	_, err := s.Get(ctx, "ns", "k")
	assert.True(t, eris.Is(err, ErrNotFound))
}
