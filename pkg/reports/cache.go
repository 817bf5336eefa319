package reports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
)

// cached dashboard payloads expire after this TTL in both layers
const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache fronts report generation with an in-process LRU and an optional
// shared Redis layer. The LRU answers repeat requests on one instance;
// Redis shares results across instances. Both layers are best effort, a
// miss or a Redis error just regenerates.
type Cache struct {
	local *lru.Cache[string, cacheEntry]
	redis *redis.Client
}

// NewCache creates a cache with the given local capacity. redisClient may
// be nil to run with the in-process layer only.
func NewCache(size int, redisClient *redis.Client) (*Cache, error) {
	if size <= 0 {
		size = 128
	}
	local, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{local: local, redis: redisClient}, nil
}

// Key derives a deterministic cache key from the report type, the caller's
// visibility and the filter.
func Key(typ Type, organizerID string, f Filter) string {
	raw, _ := json.Marshal(struct {
		Type        Type   `json:"type"`
		OrganizerID string `json:"organizer_id"`
		Filter      Filter `json:"filter"`
	}{typ, organizerID, f})
	sum := sha256.Sum256(raw)
	return "report:" + hex.EncodeToString(sum[:16])
}

// Get returns the cached payload for key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) []byte {
	if entry, ok := c.local.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			return entry.payload
		}
		c.local.Remove(key)
	}

	if c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	// Promote the shared hit into the local layer.
	c.local.Add(key, cacheEntry{payload: data, expiresAt: time.Now().Add(cacheTTL)})
	return data
}

// Put stores a payload in both layers.
func (c *Cache) Put(ctx context.Context, key string, payload []byte) {
	c.local.Add(key, cacheEntry{payload: payload, expiresAt: time.Now().Add(cacheTTL)})
	if c.redis != nil {
		c.redis.Set(ctx, key, payload, cacheTTL)
	}
}

// Invalidate drops one key from both layers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.local.Remove(key)
	if c.redis != nil {
		c.redis.Del(ctx, key)
	}
}
