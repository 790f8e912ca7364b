package weather

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores recent observations in Redis. A nil *Cache is a no-op, so the
// client works unchanged when caching is disabled.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(opts *redis.Options, ttl time.Duration) *Cache {
	return &Cache{client: redis.NewClient(opts), ttl: ttl}
}

func (c *Cache) GetObservation(ctx context.Context, key string) (Observation, bool) {
	if c == nil {
		return Observation{}, false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return Observation{}, false
	}
	var obs Observation
	if err := json.Unmarshal([]byte(val), &obs); err != nil {
		return Observation{}, false
	}
	return obs, true
}

func (c *Cache) SetObservation(ctx context.Context, key string, obs Observation) {
	if c == nil {
		return
	}
	data, err := json.Marshal(obs)
	if err != nil {
		return
	}
	// Best effort; a failed cache write only costs an extra upstream call.
	c.client.Set(ctx, key, data, c.ttl)
}
