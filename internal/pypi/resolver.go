package pypi

import (
	"bufio"
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/pkg/logger"
)

// Resolver builds dependency version records from a freeze listing.
type Resolver struct {
	client  *Client
	workers int
	now     func() time.Time
	log     *zap.SugaredLogger
}

func NewResolver(c *Client, workers int) *Resolver {
	if workers <= 0 {
		workers = 8
	}
	return &Resolver{
		client:  c,
		workers: workers,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.Named("pypi"),
	}
}

// ParseRequirements reads "name==version" lines from pip freeze output.
// Editable installs, direct URL references and comments are skipped.
func ParseRequirements(freeze string) map[string]string {
	out := make(map[string]string)
	s := bufio.NewScanner(strings.NewReader(freeze))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") || strings.Contains(line, " @ ") {
			continue
		}
		name, version, ok := strings.Cut(line, "==")
		if !ok || name == "" || version == "" {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(version)
	}
	return out
}

// Resolve implements checker.DependencyResolver. Dependencies PyPI cannot
// describe are left out rather than failing the whole listing.
func (r *Resolver) Resolve(ctx context.Context, requirements string) (map[string]checker.VersionInfo, error) {
	reqs := ParseRequirements(requirements)
	now := r.now()

	var mu sync.Mutex
	out := make(map[string]checker.VersionInfo, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for name, installed := range reqs {
		g.Go(func() error {
			info, err := r.versionInfo(ctx, name, installed, now)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Warnw("skipping dependency", "dependency", name, "error", err)
				return nil
			}
			mu.Lock()
			out[name] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) versionInfo(ctx context.Context, name, installed string, now time.Time) (checker.VersionInfo, error) {
	p, err := r.client.Project(ctx, name)
	if err != nil {
		return checker.VersionInfo{}, err
	}
	latest := p.Latest()
	info := checker.VersionInfo{
		InstalledVersion: installed,
		LatestVersion:    latest,
		IsLatest:         installed == latest,
		CurrentTime:      now,
	}
	info.InstalledVersionTime, _ = p.ReleaseTime(installed)
	info.LatestVersionTime, _ = p.ReleaseTime(latest)
	return info, nil
}
