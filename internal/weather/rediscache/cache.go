// Package rediscache implements weather.Cache on Redis so that API and worker
// instances share fetched forecasts.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/morningready/morningready/internal/weather"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "morningready"

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewClient opens a Redis client and verifies it with PING.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Cache stores snapshots as JSON strings.
type Cache struct {
	client redis.Cmdable
	prefix string
}

// New creates a Cache over client. An empty prefix uses DefaultPrefix.
func New(client redis.Cmdable, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: client, prefix: prefix}
}

// Key builds a namespaced key from non-empty parts.
func (c *Cache) Key(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(c.prefix)
	sb.WriteString(":weather")
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}
	return sb.String()
}

// Get returns weather.ErrCacheMiss when key is absent.
func (c *Cache) Get(ctx context.Context, key string) (*weather.Snapshot, error) {
	data, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, weather.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap weather.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores snap under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, snap *weather.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks the connection for readiness checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Ensure Cache implements weather.Cache interface.
var _ weather.Cache = (*Cache)(nil)
