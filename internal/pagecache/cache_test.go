package pagecache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/pkg/redis"
)

func setupCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Cache) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter("pagecache-test-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, New(adapter, ttl)
}

func snapshot(tenantID int64) *model.TenantSnapshot {
	return &model.TenantSnapshot{
		TenantID:    tenantID,
		Theme:       "garden",
		TemplateRef: "classic-gold",
		RSVPOpenAt:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		RSVPCloseAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Features:    map[string]bool{"photo_wall": true},
		GeneratedAt: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestCache_MissBeforePut(t *testing.T) {
	_, cache := setupCache(t, time.Hour)

	_, err := cache.Get(7)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	_, cache := setupCache(t, time.Hour)

	want := snapshot(7)
	require.NoError(t, cache.Put(7, want))

	got, err := cache.Get(7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCache_TenantIsolation(t *testing.T) {
	_, cache := setupCache(t, time.Hour)

	require.NoError(t, cache.Put(7, snapshot(7)))

	_, err := cache.Get(8)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_Invalidate(t *testing.T) {
	_, cache := setupCache(t, time.Hour)

	require.NoError(t, cache.Put(7, snapshot(7)))
	require.NoError(t, cache.Invalidate(7))

	_, err := cache.Get(7)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_InvalidateEmptyKey(t *testing.T) {
	_, cache := setupCache(t, time.Hour)

	// invalidating an uncached tenant is a no-op, not an error
	assert.NoError(t, cache.Invalidate(99))
}

func TestCache_EntryExpires(t *testing.T) {
	mr, cache := setupCache(t, time.Minute)

	require.NoError(t, cache.Put(7, snapshot(7)))
	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(7)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_CorruptEntryBehavesLikeMiss(t *testing.T) {
	mr, cache := setupCache(t, time.Hour)

	require.NoError(t, mr.Set("pagecache:tenant:7", "{not json"))

	_, err := cache.Get(7)
	assert.ErrorIs(t, err, ErrMiss)

	// the rebuild path overwrites the corrupt entry
	require.NoError(t, cache.Put(7, snapshot(7)))
	got, err := cache.Get(7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.TenantID)
}
