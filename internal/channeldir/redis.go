package channeldir

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisBackend shares resolved name->ID mappings across gateway processes,
// following the same client-construction and key-prefix conventions as
// other backends in the wider codebase (a single redis.NewClient, a
// namespacing prefix, Get/Set with TTL, errors wrapped rather than swallowed).
type redisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to a single Redis instance at addr. The
// connection is verified with a short-lived Ping before returning, so a
// misconfigured REDIS_URL fails fast at startup instead of silently
// degrading every lookup to the seed file.
func NewRedisBackend(addr, password string, db int) (*redisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("channeldir: connecting to redis at %s: %w", addr, err)
	}

	return &redisBackend{client: client, prefix: "channeldir:"}, nil
}

func (b *redisBackend) get(ctx context.Context, key string) (string, bool, error) {
	id, err := b.client.Get(ctx, b.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("channeldir: redis get: %w", err)
	}
	return id, true, nil
}

func (b *redisBackend) set(ctx context.Context, key, id string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.prefix+key, id, ttl).Err(); err != nil {
		return fmt.Errorf("channeldir: redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *redisBackend) Close() error {
	return b.client.Close()
}
