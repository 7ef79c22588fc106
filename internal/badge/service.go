// Package badge computes badge results in the background, keeps them in a
// cache and serves them from there.
package badge

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/purelind/pycompat-check/internal/cache"
	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/status"
	"github.com/purelind/pycompat-check/pkg/logger"
)

// Kind names one of the cached results of a package.
type Kind string

const (
	SelfCompatibility   Kind = "self_comp_badge"
	GoogleCompatibility Kind = "google_comp_badge"
	Dependency          Kind = "dependency_badge"
)

// GitHubHeadName is shown instead of the URL of a GitHub package.
const GitHubHeadName = "github head"

// refreshTimeout bounds one background refresh.
const refreshTimeout = 10 * time.Minute

// Key is the cache key of a result. GitHub packages include the commit
// the result belongs to.
func Key(pkg, commit string, kind Kind) string {
	if commit != "" {
		return fmt.Sprintf("%s_%s_%s", pkg, commit, kind)
	}
	return fmt.Sprintf("%s_%s", pkg, kind)
}

// CommitResolver finds the newest commit of a GitHub package.
type CommitResolver interface {
	LatestCommit(ctx context.Context, installName string) (string, bool)
}

// Summary is everything known about a package, as served to badge
// targets.
type Summary struct {
	Package             string                  `json:"package"`
	PURL                string                  `json:"purl"`
	Commit              string                  `json:"commit,omitempty"`
	Status              status.Status           `json:"status"`
	Timestamp           string                  `json:"timestamp"`
	SelfCompatibility   status.CompatResult     `json:"self_compat_res"`
	GoogleCompatibility status.CompatResult     `json:"google_compat_res"`
	Dependency          status.DependencyResult `json:"dependency_res"`
}

type Service struct {
	agg       *status.Aggregator
	cache     cache.Cache
	commits   CommitResolver
	whitelist *config.Whitelist
	log       *zap.SugaredLogger
	group     singleflight.Group
}

func NewService(agg *status.Aggregator, c cache.Cache, commits CommitResolver, w *config.Whitelist) *Service {
	return &Service{
		agg:       agg,
		cache:     c,
		commits:   commits,
		whitelist: w,
		log:       logger.Named("badge"),
	}
}

func (s *Service) commit(ctx context.Context, pkg string) string {
	if s.commits == nil {
		return ""
	}
	sha, _ := s.commits.LatestCommit(ctx, pkg)
	return sha
}

// Compat returns the cached compatibility result of one kind. Untracked
// packages are UNKNOWN; tracked ones not computed yet are CALCULATING.
func (s *Service) Compat(ctx context.Context, pkg string, kind Kind) (status.CompatResult, error) {
	return s.compat(ctx, pkg, s.commit(ctx, pkg), kind)
}

func (s *Service) compat(ctx context.Context, pkg, commit string, kind Kind) (status.CompatResult, error) {
	if !s.whitelist.IsTracked(pkg) {
		return status.DefaultCompat(status.Unknown, status.PackageDetails()), nil
	}
	var res status.CompatResult
	ok, err := cache.GetJSON(ctx, s.cache, Key(pkg, commit, kind), &res)
	if err != nil {
		return status.CompatResult{}, err
	}
	if !ok {
		return status.DefaultCompat(status.Calculating, status.PackageDetails()), nil
	}
	return res, nil
}

// DependencyResult returns the cached dependency result, with the same
// defaults as Compat.
func (s *Service) DependencyResult(ctx context.Context, pkg string) (status.DependencyResult, error) {
	return s.dependency(ctx, pkg, s.commit(ctx, pkg))
}

func (s *Service) dependency(ctx context.Context, pkg, commit string) (status.DependencyResult, error) {
	if !s.whitelist.IsTracked(pkg) {
		return status.DefaultDependency(status.Unknown), nil
	}
	var res status.DependencyResult
	ok, err := cache.GetJSON(ctx, s.cache, Key(pkg, commit, Dependency), &res)
	if err != nil {
		return status.DependencyResult{}, err
	}
	if !ok {
		return status.DefaultDependency(status.Calculating), nil
	}
	return res, nil
}

// Lookup reads all cached results of a package and folds them into one
// status.
func (s *Service) Lookup(ctx context.Context, pkg string) (*Summary, error) {
	commit := s.commit(ctx, pkg)
	self, err := s.compat(ctx, pkg, commit, SelfCompatibility)
	if err != nil {
		return nil, err
	}
	google, err := s.compat(ctx, pkg, commit, GoogleCompatibility)
	if err != nil {
		return nil, err
	}
	dep, err := s.dependency(ctx, pkg, commit)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Package:             pkg,
		PURL:                checker.NewPackage(pkg).PURL(),
		Commit:              commit,
		Status:              s.agg.Overall(pkg, self, google, dep),
		Timestamp:           latest(self.Timestamp, google.Timestamp, dep.Timestamp),
		SelfCompatibility:   self,
		GoogleCompatibility: google,
		Dependency:          dep,
	}, nil
}

// Refresh recomputes and caches every result of a tracked package.
// Concurrent refreshes of one package share a single computation.
func (s *Service) Refresh(ctx context.Context, pkg string) error {
	if !s.whitelist.IsTracked(pkg) {
		return nil
	}
	_, err, _ := s.group.Do(pkg, func() (any, error) {
		err := s.refresh(ctx, pkg)
		result := "ok"
		if err != nil {
			result = "error"
		}
		refreshes.WithLabelValues(result).Inc()
		return nil, err
	})
	return err
}

func (s *Service) refresh(ctx context.Context, pkg string) error {
	commit := s.commit(ctx, pkg)
	self, err := s.agg.SelfCompatibility(ctx, pkg)
	if err != nil {
		return err
	}
	if err := cache.SetJSON(ctx, s.cache, Key(pkg, commit, SelfCompatibility), self); err != nil {
		return err
	}
	google, err := s.agg.PairwiseCompatibility(ctx, pkg)
	if err != nil {
		return err
	}
	if err := cache.SetJSON(ctx, s.cache, Key(pkg, commit, GoogleCompatibility), google); err != nil {
		return err
	}
	dep, err := s.agg.Dependency(ctx, pkg)
	if err != nil {
		return err
	}
	return cache.SetJSON(ctx, s.cache, Key(pkg, commit, Dependency), dep)
}

// RefreshAsync refreshes a package without blocking the caller.
func (s *Service) RefreshAsync(pkg string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx, pkg); err != nil {
			s.log.Warnw("Background refresh failed", "package", pkg, "error", err)
		}
	}()
}

// RefreshAll refreshes every tracked package and GitHub head.
func (s *Service) RefreshAll(ctx context.Context, workers int) error {
	pkgs := append(s.whitelist.Tracked(), s.whitelist.HeadURLs()...)
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	var failed atomic.Int32
	for _, pkg := range pkgs {
		g.Go(func() error {
			if err := s.Refresh(ctx, pkg); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warnw("Refresh failed", "package", pkg, "error", err)
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Infow("Refreshed badges", "packages", len(pkgs), "failed", failed.Load())
	return nil
}

// DisplayStatus picks the status a compatibility badge shows: python 3,
// unless that succeeded and python 2 is supported, then python 2.
func (s *Service) DisplayStatus(pkg string, res status.CompatResult) status.Status {
	st := res.PY3.Status
	if st == status.Success && !s.whitelist.IsUnsupported(pkg, 2) {
		st = res.PY2.Status
	}
	return st
}

// DisplayName is the left text of a badge.
func DisplayName(pkg, badgeName string) string {
	if badgeName == "" {
		badgeName = pkg
	}
	if strings.Contains(badgeName, "github.com") {
		return GitHubHeadName
	}
	return badgeName
}

func latest(ts ...string) string {
	var out string
	for _, t := range ts {
		if t > out {
			out = t
		}
	}
	return out
}
