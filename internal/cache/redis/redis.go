// Package redis is a Redis cache backend. Import it for side effects.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/purelind/pycompat-check/internal/cache"
	"github.com/purelind/pycompat-check/internal/config"
)

type redisCache struct {
	c *goredis.Client
	l *zap.SugaredLogger
}

func init() {
	cache.RegisterCallback(func() {
		cache.RegisterFactory("redis", newRedisCache)
	})
}

func newRedisCache(cfg config.CacheConfig, l *zap.SugaredLogger) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR must be set")
	}
	return New(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}), l), nil
}

// New wraps a connected client.
func New(c *goredis.Client, l *zap.SugaredLogger) cache.Cache {
	return &redisCache{c: c, l: l.Named("redis")}
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	default:
		r.l.Warnw("redis get failed", "key", key, "error", err)
		return nil, false, err
	}
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte) error {
	return r.c.Set(ctx, key, value, 0).Err()
}

func (r *redisCache) Close() error {
	return r.c.Close()
}
