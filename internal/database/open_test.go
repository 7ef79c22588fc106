package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Store.Driver = DriverMemory
	s, closeFn, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("memory driver opened %T", s)
	}
	closeFn()

	cfg.Store.Driver = DriverSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "results.db")
	s, closeFn, err = Open(ctx, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	r := result([]string{"a"}, 3, checker.StatusSuccess, 0)
	if err := s.Save(ctx, []*checker.Result{r}); err != nil {
		t.Fatal(err)
	}
	got, err := s.SelfCompatibility(ctx, checker.NewPackage("a"))
	if err != nil || len(got) != 1 {
		t.Errorf("got %v, %v", got, err)
	}

	cfg.Store.Driver = "postgres"
	if _, _, err := Open(ctx, cfg, nil); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}
