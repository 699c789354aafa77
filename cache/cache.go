// Package cache holds the short-lived key/value state shared between requests:
// rendered page fragments, revoked session tokens, password reset codes,
// OAuth state tokens and captcha answers.
package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/utils"
)

// Store is a time-bounded key/value store. Writes are last-write-wins and
// entries disappear once their TTL has passed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Take returns the value and removes it in one step.
	Take(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	// Clear drops every entry owned by this store.
	Clear(ctx context.Context) error
	// Close releases connections and background workers.
	Close() error
}

// New builds the store selected by CacheBackend ("redis" or "memory").
func New(ctx context.Context, cfg config.AppConfig) (Store, error) {
	switch cfg.CacheBackend {
	case "memory":
		store := NewMemoryStore(utils.NewRealClock())
		store.StartSweeper(DefaultSweepInterval)
		return store, nil
	case "redis", "":
		client := NewRedisClient(cfg)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisStore(client, cfg.CachePrefix), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.CacheBackend)
	}
}

// NewRedisClient returns a client for the configured redis server.
func NewRedisClient(cfg config.AppConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}
