package pagecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitchly/engagement-tracker/internal/model"
	"github.com/hitchly/engagement-tracker/pkg/redis"
)

// ErrMiss is returned by Get when no snapshot is cached for the tenant. The
// caller owns the rebuild: fetch from authoritative storage, then Put.
var ErrMiss = errors.New("no cached snapshot for tenant")

// SnapshotReader is the guest-page read path.
type SnapshotReader interface {
	Get(tenantID int64) (*model.TenantSnapshot, error)
}

// SnapshotWriter fills the cache after a miss. Puts may race; last writer
// wins, which is safe because all writers derive from the same
// authoritative source.
type SnapshotWriter interface {
	Put(tenantID int64, snap *model.TenantSnapshot) error
}

// Invalidator is called by mutation collaborators after any write to
// tenant-wide configuration. It is deliberately separate from the read
// path so a theme editor never depends on guest-page code.
type Invalidator interface {
	Invalidate(tenantID int64) error
}

const keyPrefix = "pagecache:tenant:"

// Cache is the redis-backed snapshot store. It never rebuilds a snapshot
// itself and knows nothing about what tenant configuration contains.
type Cache struct {
	redis redis.RedisAdapter
	ttl   time.Duration
}

func New(redisAdapter redis.RedisAdapter, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		redis: redisAdapter,
		ttl:   ttl,
	}
}

func key(tenantID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, tenantID)
}

func (c *Cache) Get(tenantID int64) (*model.TenantSnapshot, error) {
	raw, err := c.redis.Get(key(tenantID))
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var snap model.TenantSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt entry behaves like a miss; the rebuild overwrites it.
		return nil, ErrMiss
	}
	return &snap, nil
}

func (c *Cache) Put(tenantID int64, snap *model.TenantSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.redis.Set(key(tenantID), raw, c.ttl)
}

func (c *Cache) Invalidate(tenantID int64) error {
	return c.redis.Del(key(tenantID))
}
