// Package cache holds the key/value stores badge results are kept in.
// Backends register a factory and one is picked by name at startup.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/pkg/logger"
)

// Cache is a byte-valued key/value store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// A Factory creates a cache backend from configuration.
type Factory func(cfg config.CacheConfig, l *zap.SugaredLogger) (Cache, error)

var (
	mu            sync.Mutex
	initcallbacks []func()
	factories     = make(map[string]Factory)
)

var ErrNoFactory = errors.New("no cache factory exists with that name")

// RegisterFactory makes a backend available under a name.
func RegisterFactory(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		logger.Warnf("Cache name collision: %s", name)
		return
	}
	factories[name] = f
	logger.Debugf("Registered cache %s", name)
}

// RegisterCallback defers factory registration until DoCallbacks, after
// logging is set up.
func RegisterCallback(f func()) {
	mu.Lock()
	defer mu.Unlock()
	initcallbacks = append(initcallbacks, f)
}

// DoCallbacks runs every registration callback once.
func DoCallbacks() {
	mu.Lock()
	cbs := initcallbacks
	initcallbacks = nil
	mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// Initialize builds the configured backend, wrapped with compression
// when enabled.
func Initialize(cfg config.CacheConfig) (Cache, error) {
	mu.Lock()
	f, ok := factories[cfg.Backend]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFactory, cfg.Backend)
	}
	c, err := f(cfg, logger.Named("cache"))
	if err != nil {
		return nil, err
	}
	if cfg.Compress {
		return NewCompressed(c)
	}
	return c, nil
}

// GetJSON decodes the value at key into v. It reports false on a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	b, ok, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		cacheMisses.Inc()
		return false, nil
	}
	cacheHits.Inc()
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, b)
}
