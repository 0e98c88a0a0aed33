package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
	"github.com/redis/go-redis/v9"
)

var _ compliance.KVStore = (*Redis)(nil)

// TransientTTL bounds how long a non-durable key lives in Redis or SQLite.
const TransientTTL = 7 * 24 * time.Hour

// Redis stores compliance keys in a shared Redis so several instances behind one
// licence see the same state. Non-durable values expire after TransientTTL.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis builds a store from a redis:// or rediss:// URL.
func NewRedis(rawURL string) (*Redis, error) {
	client, err := clientFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &Redis{client: client}, nil
}

func clientFromURL(rawURL string) (redis.UniversalClient, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
		return nil, fmt.Errorf("invalid redis URL scheme %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return nil, errors.New("redis URL has no host")
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.MaxRetries = 3
	return redis.NewClient(opts), nil
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, durable bool) error {
	var ttl time.Duration
	if !durable {
		ttl = TransientTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
