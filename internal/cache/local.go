package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/purelind/pycompat-check/internal/config"
)

func init() {
	RegisterCallback(func() {
		RegisterFactory("local", func(config.CacheConfig, *zap.SugaredLogger) (Cache, error) {
			return NewLocal(), nil
		})
	})
}

// Local keeps values in process memory.
type Local struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewLocal() *Local {
	return &Local{m: make(map[string][]byte)}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (l *Local) Set(_ context.Context, key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[key] = append([]byte(nil), value...)
	return nil
}

func (l *Local) Close() error { return nil }
