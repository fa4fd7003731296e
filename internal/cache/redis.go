// Package cache keeps cross-run state in Redis: a per-table run lock so that
// overlapping refreshes skip a table instead of racing on its directory, and
// the time each table was last refreshed.
package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "baseball_db"

// ErrLockHeld is returned when another run holds the table lock
var ErrLockHeld = errors.New("lock held by another run")

// Release frees an acquired lock
type Release func(ctx context.Context) error

// Locker guards a table for the duration of one refresh
type Locker interface {
	Acquire(ctx context.Context, name string) (Release, error)
	MarkRefreshed(ctx context.Context, name string, at time.Time) error
}

// Config holds Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// RedisCache is the Redis backed Locker
type RedisCache struct {
	client  *redis.Client
	lockTTL time.Duration
}

// only the holder's token may delete the lock
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	log.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Dur("lock_ttl", cfg.LockTTL).
		Msg("Connected to Redis")

	return &RedisCache{client: rdb, lockTTL: cfg.LockTTL}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// LockKey is the key guarding one table
func LockKey(name string) string {
	return keyPrefix + ":lock:" + name
}

// RefreshKey holds the last successful refresh time of one table
func RefreshKey(name string) string {
	return keyPrefix + ":last_refresh:" + name
}

// Acquire takes the table lock or returns ErrLockHeld. The lock expires
// after the configured TTL so a crashed run cannot hold it forever.
func (c *RedisCache) Acquire(ctx context.Context, name string) (Release, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	key := LockKey(name)
	ok, err := c.client.SetNX(ctx, key, token, c.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrLockHeld)
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

// MarkRefreshed records when the table was last refreshed
func (c *RedisCache) MarkRefreshed(ctx context.Context, name string, at time.Time) error {
	if err := c.client.Set(ctx, RefreshKey(name), at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to record refresh of %s: %w", name, err)
	}
	return nil
}

// LastRefresh returns the recorded refresh time, ok is false when none was
// recorded.
func (c *RedisCache) LastRefresh(ctx context.Context, name string) (time.Time, bool, error) {
	val, err := c.client.Get(ctx, RefreshKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read refresh time of %s: %w", name, err)
	}
	at, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid refresh time %q for %s: %w", val, name, err)
	}
	return at, true, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NopLocker never blocks, used when Redis is disabled
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

func (NopLocker) MarkRefreshed(context.Context, string, time.Time) error { return nil }
