package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	redisRoomTTL = 1 * time.Hour

	layerMemory = "memory"
	layerRedis  = "redis"
)

// RoomCache resolves rooms through an in-memory layer, an optional Redis
// layer and finally the source repository. Rooms are immutable, so entries
// are never invalidated, only expired. Misses are not cached, which lets a
// room created after a failed lookup resolve immediately.
type RoomCache struct {
	source  domain.RoomFinder
	rdb     goredis.Cmdable
	mem     *memoryCache
	group   singleflight.Group
	metrics *metrics.CacheMetrics
}

// NewRoomCache builds the cache. rdb and m may be nil.
func NewRoomCache(source domain.RoomFinder, rdb goredis.Cmdable, clock clockwork.Clock, memTTL time.Duration, m *metrics.CacheMetrics) *RoomCache {
	return &RoomCache{
		source:  source,
		rdb:     rdb,
		mem:     newMemoryCache(clock, memTTL),
		metrics: m,
	}
}

// StartEvictionTimer periodically drops expired in-memory entries.
// Returns a stop function that should be deferred.
func (c *RoomCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.mem.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.mem.evictExpired(); evicted > 0 {
					slog.Debug("Evicted expired room cache entries", "count", evicted, "remaining", c.mem.size())
				}
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}

func (c *RoomCache) GetByPublicID(ctx context.Context, publicID string) (*domain.Room, error) {
	if room, ok := c.mem.get(publicID); ok {
		c.hit(layerMemory)
		return room, nil
	}
	c.miss(layerMemory)

	// Concurrent joins to the same room share one lookup, so it must not
	// end with whichever caller started it.
	v, err, _ := c.group.Do(publicID, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), publicID)
	})
	if err != nil {
		return nil, err
	}
	room := *v.(*domain.Room)
	return &room, nil
}

func (c *RoomCache) load(ctx context.Context, publicID string) (*domain.Room, error) {
	if room, ok := c.getCached(ctx, publicID); ok {
		c.mem.set(publicID, room)
		return room, nil
	}

	room, err := c.source.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("room lookup by public id failed: %w", err)
	}

	c.mem.set(publicID, room)
	c.writeCache(ctx, room)
	return room, nil
}

// cachedRoom is the Redis representation of a room.
type cachedRoom struct {
	ID        uuid.UUID `json:"id"`
	PublicID  string    `json:"publicId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *RoomCache) getCached(ctx context.Context, publicID string) (*domain.Room, bool) {
	if c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, roomCacheKey(publicID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.miss(layerRedis)
		return nil, false
	}
	if err != nil {
		c.fail(layerRedis)
		slog.Warn("Redis room cache GET failed", "room", publicID, "error", err)
		return nil, false
	}

	var cached cachedRoom
	if err := json.Unmarshal(data, &cached); err != nil {
		c.fail(layerRedis)
		slog.Warn("Failed to unmarshal cached room", "room", publicID, "error", err)
		return nil, false
	}

	c.hit(layerRedis)
	return &domain.Room{ID: cached.ID, PublicID: cached.PublicID, CreatedAt: cached.CreatedAt}, true
}

func (c *RoomCache) writeCache(ctx context.Context, room *domain.Room) {
	if c.rdb == nil {
		return
	}

	encoded, err := json.Marshal(cachedRoom{ID: room.ID, PublicID: room.PublicID, CreatedAt: room.CreatedAt})
	if err != nil {
		slog.Warn("Failed to marshal room for Redis cache", "room", room.PublicID, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, roomCacheKey(room.PublicID), encoded, redisRoomTTL).Err(); err != nil {
		c.fail(layerRedis)
		slog.Warn("Failed to populate Redis room cache", "room", room.PublicID, "error", err)
	}
}

func (c *RoomCache) hit(layer string) {
	if c.metrics != nil {
		c.metrics.Hits.WithLabelValues(layer).Inc()
	}
}

func (c *RoomCache) miss(layer string) {
	if c.metrics != nil {
		c.metrics.Misses.WithLabelValues(layer).Inc()
	}
}

func (c *RoomCache) fail(layer string) {
	if c.metrics != nil {
		c.metrics.Errors.WithLabelValues(layer).Inc()
	}
}

func roomCacheKey(publicID string) string {
	return "room_cache:" + publicID
}

// memoryCache is an in-memory L1 cache with TTL-based expiry.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	clock   clockwork.Clock
	ttl     time.Duration
}

type memoryCacheEntry struct {
	room      domain.Room
	expiresAt time.Time
}

func newMemoryCache(clock clockwork.Clock, ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryCacheEntry),
		clock:   clock,
		ttl:     ttl,
	}
}

func (c *memoryCache) get(publicID string) (*domain.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[publicID]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	room := entry.room
	return &room, true
}

func (c *memoryCache) set(publicID string, room *domain.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[publicID] = memoryCacheEntry{
		room:      *room,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}
