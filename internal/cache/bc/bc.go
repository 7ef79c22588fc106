// Package bc is a bitcask cache backend. Import it for side effects.
package bc

import (
	"context"
	"errors"

	"git.mills.io/prologic/bitcask"
	"go.uber.org/zap"

	"github.com/purelind/pycompat-check/internal/cache"
	"github.com/purelind/pycompat-check/internal/config"
)

type bcCache struct {
	s *bitcask.Bitcask
	l *zap.SugaredLogger
}

func init() {
	cache.RegisterCallback(newFactory)
}

func newFactory() {
	cache.RegisterFactory("bitcask", newBCCache)
}

func newBCCache(cfg config.CacheConfig, l *zap.SugaredLogger) (cache.Cache, error) {
	if cfg.BitcaskPath == "" {
		l.Error("CACHE_BITCASK_PATH must be set")
		return nil, errors.New("required variable unset")
	}
	return Open(cfg.BitcaskPath, l)
}

// Open opens or creates a bitcask database at path.
func Open(path string, l *zap.SugaredLogger) (cache.Cache, error) {
	opts := []bitcask.Option{
		bitcask.WithMaxKeySize(1024),
		bitcask.WithMaxValueSize(1024 * 1000 * 8), // 8MiB
		bitcask.WithSync(true),
	}
	b, err := bitcask.Open(path, opts...)
	if err != nil {
		l.Errorw("Error initializing bitcask", "error", err)
		return nil, err
	}
	return &bcCache{s: b, l: l.Named("bitcask")}, nil
}

func (b *bcCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := b.s.Get([]byte(key))
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, bitcask.ErrKeyNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func (b *bcCache) Set(_ context.Context, key string, value []byte) error {
	return b.s.Put([]byte(key), value)
}

func (b *bcCache) Close() error {
	return b.s.Close()
}
