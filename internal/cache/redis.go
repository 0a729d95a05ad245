// Package cache holds the Redis backed cache of public lookup resolutions.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aimaster/apiserver/config"
)

const (
	defaultTimeout = 5 * time.Second
	defaultTTL     = 10 * time.Minute
	keyPrefix      = "aimaster:lookup:"
)

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// LookupCache remembers which user a public identifier resolved to.
// Key format: aimaster:lookup:<lowercased identifier>
type LookupCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewLookupCache(client redis.Cmdable, ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LookupCache{client: client, ttl: ttl}
}

// Get returns the cached user id for identifier.
func (c *LookupCache) Get(ctx context.Context, identifier string) (int, bool, error) {
	raw, err := c.client.Get(ctx, Key(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup cache get: %w", err)
	}
	userID, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("lookup cache value %q: %w", raw, err)
	}
	return userID, true, nil
}

// Set stores the resolution of identifier for the cache TTL.
func (c *LookupCache) Set(ctx context.Context, identifier string, userID int) error {
	return c.client.Set(ctx, Key(identifier), strconv.Itoa(userID), c.ttl).Err()
}

// Key builds the Redis key of identifier. Lookups are case-insensitive, so the
// key is too.
func Key(identifier string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(identifier))
}
