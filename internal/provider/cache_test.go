package provider

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"addrstats/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	cache, err := NewCache(filepath.Join(t.TempDir(), "nested", "cache.db"), ttl, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache_PutGet(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	_, ok := cache.Get("explorer", addrA)
	assert.False(t, ok)

	txs := []models.RawTransaction{{Hash: "0x01", Value: "1", Source: "explorer"}, {Hash: "0x02", Source: "explorer"}}
	require.NoError(t, cache.Put("explorer", addrA, txs))

	got, ok := cache.Get("explorer", addrA)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "0x01", got[0].Hash)
	assert.Equal(t, "explorer", got[1].Source)

	// 不同数据源、不同地址互不影响
	_, ok = cache.Get("rpc", addrA)
	assert.False(t, ok)
	_, ok = cache.Get("explorer", addrB)
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(3), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCache_TTL(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Put("explorer", addrA, []models.RawTransaction{{Hash: "0x01"}}))
	require.NoError(t, cache.Put("explorer", addrB, []models.RawTransaction{{Hash: "0x02"}}))

	now = now.Add(30 * time.Second)
	_, ok := cache.Get("explorer", addrA)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = cache.Get("explorer", addrA)
	assert.False(t, ok)

	removed, err := cache.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := newTestCache(t, 0)
	now := time.Now()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Put("rpc", addrA, []models.RawTransaction{}))
	now = now.Add(365 * 24 * time.Hour)

	got, ok := cache.Get("rpc", addrA)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCachedProvider(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	inner := &stubProvider{name: "explorer", txs: []models.RawTransaction{{Hash: "0x01"}}}
	p := cache.Wrap(inner)

	assert.Equal(t, "explorer", p.Name())

	for i := 0; i < 2; i++ {
		txs, err := p.FetchTransactions(context.Background(), addrA)
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	inner := &stubProvider{name: "explorer", err: errUpstream}
	p := cache.Wrap(inner)

	_, err := p.FetchTransactions(context.Background(), addrA)
	require.Error(t, err)
	_, err = p.FetchTransactions(context.Background(), addrA)
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 0, cache.Stats().Entries)
}
