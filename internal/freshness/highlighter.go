package freshness

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/pkg/logger"
)

// OutdatedDependency is a dependency of Parent that is not at its latest
// release, or whose installed release is unstable.
type OutdatedDependency struct {
	Name                 string    `json:"name"`
	Parent               string    `json:"parent"`
	Priority             Priority  `json:"priority"`
	InstalledVersion     string    `json:"installed_version"`
	InstalledVersionTime time.Time `json:"installed_version_time"`
	LatestVersion        string    `json:"latest_version"`
	LatestVersionTime    time.Time `json:"latest_version_time"`
}

// Source provides the dependency snapshot of a package.
type Source interface {
	DependencyInfo(ctx context.Context, installName string) (map[string]checker.VersionInfo, error)
}

type Highlighter struct {
	src       Source
	whitelist *config.Whitelist
	log       *zap.SugaredLogger
}

func NewHighlighter(src Source, w *config.Whitelist) *Highlighter {
	return &Highlighter{src: src, whitelist: w, log: logger.Named("freshness")}
}

// Check returns the outdated dependencies of a package, sorted by name.
func (h *Highlighter) Check(ctx context.Context, installName string) ([]OutdatedDependency, error) {
	info, err := h.src.DependencyInfo(ctx, installName)
	if err != nil {
		return nil, err
	}
	return h.Classify(installName, info), nil
}

// CheckPackages runs Check for several packages at once.
func (h *Highlighter) CheckPackages(ctx context.Context, names []string, workers int) (map[string][]OutdatedDependency, error) {
	var mu sync.Mutex
	out := make(map[string][]OutdatedDependency, len(names))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, name := range names {
		g.Go(func() error {
			deps, err := h.Check(ctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = deps
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Classify grades every dependency in a snapshot. Dependencies at their
// latest stable release and ignored dependencies are left out.
func (h *Highlighter) Classify(parent string, info map[string]checker.VersionInfo) []OutdatedDependency {
	var out []OutdatedDependency
	for name, v := range info {
		if h.whitelist != nil && h.whitelist.IsIgnored(name) {
			continue
		}
		if d, ok := classify(parent, name, v); ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func classify(parent, name string, v checker.VersionInfo) (OutdatedDependency, bool) {
	d := OutdatedDependency{
		Name:                 name,
		Parent:               parent,
		InstalledVersion:     v.InstalledVersion,
		InstalledVersionTime: v.InstalledVersionTime,
		LatestVersion:        v.LatestVersion,
		LatestVersionTime:    v.LatestVersionTime,
	}

	installed, err := ParseRelease(v.InstalledVersion)
	if err != nil {
		d.Priority = Priority{HighPriority, err.Error()}
		return d, true
	}
	if v.IsLatest {
		return d, false
	}
	latest, err := ParseRelease(v.LatestVersion)
	if err != nil {
		d.Priority = Priority{HighPriority, err.Error()}
		return d, true
	}
	d.Priority = UpdatePriority(installed, latest, elapsedSince(v.LatestVersionTime, v.CurrentTime))
	return d, true
}

// Overall is the highest priority level among deps, or UpToDate.
func Overall(deps []OutdatedDependency) Level {
	level := UpToDate
	for _, d := range deps {
		if d.Priority.Level > level {
			level = d.Priority.Level
		}
	}
	return level
}

// StoreFirst reads snapshots of tracked packages from the store and asks
// the checker about anything else.
type StoreFirst struct {
	store         Source
	checker       checker.Checker
	whitelist     *config.Whitelist
	pythonVersion int
}

func NewStoreFirst(store Source, c checker.Checker, w *config.Whitelist) *StoreFirst {
	return &StoreFirst{store: store, checker: c, whitelist: w, pythonVersion: 3}
}

func (s *StoreFirst) DependencyInfo(ctx context.Context, installName string) (map[string]checker.VersionInfo, error) {
	if s.whitelist.IsTracked(installName) || s.checker == nil {
		return s.store.DependencyInfo(ctx, installName)
	}
	res, err := s.checker.Check(ctx, s.pythonVersion, []string{installName})
	if err != nil {
		return nil, err
	}
	return res.DependencyInfo, nil
}
