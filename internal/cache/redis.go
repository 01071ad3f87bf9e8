package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"busz-backend/internal/tago"
)

// RedisStopCache is a shared read-through cache of resolved nearest stops,
// keyed by the querying coordinate. Entries expire quickly; stop positions
// don't move but upstream results can.
type RedisStopCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStopCache(client *redis.Client, ttl time.Duration) *RedisStopCache {
	return &RedisStopCache{client: client, ttl: ttl}
}

func (r *RedisStopCache) GetStop(ctx context.Context, lat, lng float64) (*tago.Stop, error) {
	val, err := r.client.Get(ctx, formatKey(lat, lng)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cached stop: %w", err)
	}
	var stop tago.Stop
	if err := json.Unmarshal([]byte(val), &stop); err != nil {
		return nil, fmt.Errorf("unmarshalling cached stop: %w", err)
	}
	return &stop, nil
}

func (r *RedisStopCache) SetStop(ctx context.Context, lat, lng float64, stop *tago.Stop) error {
	data, err := json.Marshal(stop)
	if err != nil {
		return fmt.Errorf("marshalling stop: %w", err)
	}
	if err := r.client.Set(ctx, formatKey(lat, lng), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("caching stop: %w", err)
	}
	return nil
}

// formatKey rounds coordinates to ~1m so nearby queries share an entry.
func formatKey(lat, lng float64) string {
	return fmt.Sprintf("busz:stop:%.5f:%.5f", lat, lng)
}

// NoopStopCache is used when no Redis instance is configured: every read is
// a miss, every write is dropped.
type NoopStopCache struct{}

func (NoopStopCache) GetStop(context.Context, float64, float64) (*tago.Stop, error) {
	return nil, nil
}

func (NoopStopCache) SetStop(context.Context, float64, float64, *tago.Stop) error {
	return nil
}
