package freshness

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/pypi"
	"github.com/purelind/pycompat-check/pkg/logger"
)

// ProjectFetcher looks up PyPI metadata.
type ProjectFetcher interface {
	Project(ctx context.Context, name string) (*pypi.Project, error)
}

// DeprecatedFinder lists the dependencies of a package that PyPI marks as
// inactive.
type DeprecatedFinder struct {
	src       Source
	pypi      ProjectFetcher
	whitelist *config.Whitelist
	workers   int
	log       *zap.SugaredLogger
}

func NewDeprecatedFinder(src Source, p ProjectFetcher, w *config.Whitelist) *DeprecatedFinder {
	return &DeprecatedFinder{
		src:       src,
		pypi:      p,
		whitelist: w,
		workers:   10,
		log:       logger.Named("deprecated"),
	}
}

// Find returns the sorted names of deprecated dependencies. Dependencies
// PyPI cannot describe are skipped.
func (f *DeprecatedFinder) Find(ctx context.Context, installName string) ([]string, error) {
	info, err := f.src.DependencyInfo(ctx, installName)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		deprecated []string
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for dep := range info {
		if f.whitelist != nil && f.whitelist.IsIgnored(dep) {
			continue
		}
		g.Go(func() error {
			p, err := f.pypi.Project(ctx, dep)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.log.Warnw("failed to look up dependency", "dependency", dep, "error", err)
				return nil
			}
			if p.IsInactive() {
				mu.Lock()
				deprecated = append(deprecated, dep)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(deprecated)
	return deprecated, nil
}
