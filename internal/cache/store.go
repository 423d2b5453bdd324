// Package cache holds the read-through store for order details.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
)

// ErrCacheMiss is returned by Get when nothing is stored under the key.
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte-oriented key value cache. A zero ttl means the store's default.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Module provides the configured Store.
var Module = fx.Provide(NewStore)

// NewStore picks the backend named by CACHE_DRIVER. The redis client is pinged on start and closed
// on stop.
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Cache.Driver {
	case "noop":
		logger.Info("order cache disabled")
		return Noop(), nil
	case "redis":
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	lc.Append(fx.StartStopHook(
		func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis %s: %w", cfg.Cache.Redis.Addr, err)
			}
			logger.Info("order cache ready", zap.String("addr", cfg.Cache.Redis.Addr), zap.Duration("ttl", cfg.Cache.DefaultTTL))
			return nil
		},
		client.Close,
	))

	return NewRedisStore(client, WithTTL(cfg.Cache.DefaultTTL)), nil
}

// Noop returns a store that holds nothing. Reads always miss.
func Noop() Store { return noop{} }

type noop struct{}

func (noop) Get(context.Context, string) ([]byte, error)               { return nil, ErrCacheMiss }
func (noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noop) Delete(context.Context, string) error                      { return nil }
