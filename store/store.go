// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package store provides the external-state contract the `ratelimit`
// built-in action uses: a small key/counter interface plus a
// github.com/redis/go-redis/v9 implementation. Incr runs as a Lua script
// so the increment and its expiry are applied atomically, and the cmdable
// subset keeps the Redis store testable with a fake client instead of a
// real server.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the minimal external-state contract an action needs: an atomic
// counter increment with expiry, and plain get/set for arbitrary values.
type Store interface {
	// Incr atomically increments key by 1, setting it to expire after ttl
	// only the first time it is created, and returns the post-increment
	// value. Used by the `ratelimit` action to track a request count per
	// window.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the value stored under key, or ok=false if unset.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, expiring after ttl (zero means no
	// expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// cmdable is the subset of *redis.Client/redis.Cmdable the Redis store
// needs, so tests can substitute a fake without standing up miniredis.
type cmdable interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
}

// incrScript atomically increments the key and, only on the call that
// creates it, applies the expiry, so a window's TTL is set exactly once.
const incrScript = `
local key = KEYS[1]
local ttl = tonumber(ARGV[1])
local n = redis.call('INCR', key)
if n == 1 and ttl and ttl > 0 then
  redis.call('EXPIRE', key, ttl)
end
return n
`

// Redis is a Store backed by a github.com/redis/go-redis/v9 client.
type Redis struct {
	client cmdable
}

// NewRedis wraps an existing *redis.Client (or *redis.ClusterClient, which
// also satisfies cmdable) as a Store.
func NewRedis(client cmdable) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	res, err := r.client.Eval(ctx, incrScript, []string{key}, int64(ttl.Seconds())).Result()
	if err != nil {
		return 0, err
	}
	n, ok := res.(int64)
	if !ok {
		return 0, nil
	}
	return n, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

var _ Store = (*Redis)(nil)
