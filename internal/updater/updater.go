// Package updater tracks the latest commit of every GitHub head package so
// badge results can be keyed on it.
package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/pkg/logger"
)

const (
	DefaultAPI = "https://api.github.com"
	// CacheTTL is how long a fetched commit is trusted.
	CacheTTL = 1800 * time.Second
)

var ErrNotGitHub = errors.New("not a github package")

type commit struct {
	sha     string
	fetched time.Time
}

type Updater struct {
	api       string
	token     string
	http      *http.Client
	limiter   *rate.Limiter
	whitelist *config.Whitelist
	log       *zap.SugaredLogger
	now       func() time.Time

	mu      sync.Mutex
	commits map[string]commit
}

func NewUpdater(api, token string, w *config.Whitelist) *Updater {
	if api == "" {
		api = DefaultAPI
	}
	return &Updater{
		api:       strings.TrimSuffix(api, "/"),
		token:     token,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 5),
		whitelist: w,
		log:       logger.Named("updater"),
		now:       time.Now,
		commits:   make(map[string]commit),
	}
}

// ParseRepo extracts owner and repository from a GitHub install URL such
// as git+git://github.com/owner/repo.git#subdirectory=x.
func ParseRepo(installName string) (owner, repo string, ok bool) {
	u, err := url.Parse(installName)
	if err != nil || u.Scheme == "" || u.Host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// LatestCommit returns the newest commit SHA of a GitHub package. It
// reports false for other packages and when GitHub cannot be reached.
func (u *Updater) LatestCommit(ctx context.Context, installName string) (string, bool) {
	if _, _, ok := ParseRepo(installName); !ok {
		return "", false
	}
	u.mu.Lock()
	c, ok := u.commits[installName]
	u.mu.Unlock()
	if ok && u.now().Sub(c.fetched) <= CacheTTL {
		return c.sha, true
	}
	if err := u.Update(ctx, installName); err != nil {
		u.log.Warnw("Unable to fetch latest commit", "package", installName, "error", err)
		if ok {
			return c.sha, true
		}
		return "", false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.commits[installName].sha, true
}

// UpdateAll refreshes every GitHub head on the whitelist. Failures are
// logged and skipped.
func (u *Updater) UpdateAll(ctx context.Context) error {
	for _, head := range u.whitelist.HeadURLs() {
		if err := u.Update(ctx, head); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			u.log.Errorw("Failed to update commit info", "package", head, "error", err)
			continue
		}
	}
	return nil
}

// Update fetches the latest commit of one GitHub package.
func (u *Updater) Update(ctx context.Context, installName string) error {
	owner, repo, ok := ParseRepo(installName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotGitHub, installName)
	}
	sha, err := u.fetch(ctx, owner, repo)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.commits[installName] = commit{sha: sha, fetched: u.now()}
	u.mu.Unlock()
	u.log.Debugw("Updated commit info", "package", installName, "sha", sha)
	return nil
}

func (u *Updater) fetch(ctx context.Context, owner, repo string) (string, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=1", u.api, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github returned status %d for %s/%s", resp.StatusCode, owner, repo)
	}

	var commits []struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return "", fmt.Errorf("failed to decode commits: %w", err)
	}
	if len(commits) == 0 || commits[0].SHA == "" {
		return "", fmt.Errorf("no commits found for %s/%s", owner, repo)
	}
	return commits[0].SHA, nil
}
