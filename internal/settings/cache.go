package settings

import (
	"context"
	"encoding/json"
	"time"

	"sales_portal_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "automation:settings"

// Cache is a short-TTL read cache in front of the settings repository.
// Reads may be a few seconds behind a write; anything that must see a fresh
// write (the sweep, the patch flow) bypasses it through GetFresh on the
// service. Writes delete the key so the staleness window never exceeds the
// TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, log: log}
}

// Get returns the cached settings and whether the key was present. Cache
// errors degrade to a miss; the caller falls through to the repository.
func (c *Cache) Get(ctx context.Context) (Settings, bool) {
	raw, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("settings cache read failed", "error", err.Error())
		}
		return Settings{}, false
	}

	current := Defaults()
	if err := json.Unmarshal(raw, &current); err != nil {
		c.log.Warn("settings cache entry corrupt, dropping", "error", err.Error())
		c.Invalidate(ctx)
		return Settings{}, false
	}
	return current, true
}

// Put stores the settings for the configured TTL. Best effort.
func (c *Cache) Put(ctx context.Context, s Settings) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey, encoded, c.ttl).Err(); err != nil {
		c.log.Warn("settings cache write failed", "error", err.Error())
	}
}

// Invalidate removes the cached entry. Called after every successful patch.
func (c *Cache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.log.Warn("settings cache invalidation failed", "error", err.Error())
	}
}
