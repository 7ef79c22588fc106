package database

import (
	"context"

	"github.com/purelind/pycompat-check/internal/config"
)

// DriverMemory keeps results in process, for local runs and tests.
const DriverMemory = "memory"

// Open returns the store selected by cfg.Store.Driver with its schema in
// place. The returned func releases the store.
func Open(ctx context.Context, cfg *config.Config, pypiName func(string) string) (Store, func() error, error) {
	if cfg.Store.Driver == DriverMemory {
		return NewMemory(pypiName), func() error { return nil }, nil
	}
	db, err := New(Config{
		Driver:   cfg.Store.Driver,
		Host:     cfg.MySQL.Host,
		Port:     cfg.MySQL.Port,
		User:     cfg.MySQL.User,
		Password: cfg.MySQL.Password,
		Database: cfg.MySQL.Database,
		Path:     cfg.Store.SQLitePath,
		PyPIName: pypiName,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, db.Close, nil
}
