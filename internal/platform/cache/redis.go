// Package cache owns the shared redis connection used for token revocation
// and alert fan-out.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key and channel written by the service.
const KeyPrefix = "clinicore"

// NewRedis parses a redis:// URL, connects and pings. An empty URL returns a
// nil client and no error; callers fall back to in-process implementations.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// Key joins parts under KeyPrefix with ':' separators.
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}
