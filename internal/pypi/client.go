// Package pypi reads package metadata from the PyPI JSON API.
package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"golang.org/x/time/rate"

	"github.com/purelind/pycompat-check/internal/checker"
)

const DefaultURL = "https://pypi.org/pypi"

// InactiveClassifier marks a package as deprecated.
const InactiveClassifier = "Development Status :: 7 - Inactive"

var ErrNotFound = errors.New("pypi: package not found")

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient returns a client making at most perSecond requests per
// second. perSecond <= 0 disables limiting.
func NewClient(baseURL string, perSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Project fetches the metadata of the latest release of name.
func (c *Client) Project(ctx context.Context, name string) (*Project, error) {
	return c.get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(name)))
}

// Release fetches the metadata of one release of name.
func (c *Client) Release(ctx context.Context, name, version string) (*Project, error) {
	return c.get(ctx, fmt.Sprintf("%s/%s/%s/json", c.baseURL, url.PathEscape(name), url.PathEscape(version)))
}

func (c *Client) get(ctx context.Context, u string) (*Project, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("pypi: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pypi: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	default:
		return nil, fmt.Errorf("pypi: unexpected status code %d for %s", resp.StatusCode, u)
	}

	var p Project
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("pypi: failed to decode %s: %w", u, err)
	}
	return &p, nil
}

type Project struct {
	Info     Info              `json:"info"`
	Releases map[string][]File `json:"releases"`
}

type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Classifiers []string `json:"classifiers"`
}

// File is one uploaded distribution of a release.
type File struct {
	UploadTime    string `json:"upload_time"`
	UploadTimeISO string `json:"upload_time_iso_8601"`
	Yanked        bool   `json:"yanked"`
}

func (f File) Time() (time.Time, error) {
	if f.UploadTimeISO != "" {
		return checker.ParseTime(f.UploadTimeISO)
	}
	return checker.ParseTime(f.UploadTime)
}

// ReleaseTime is the earliest upload time of a release.
func (p *Project) ReleaseTime(version string) (time.Time, bool) {
	var first time.Time
	for _, f := range p.Releases[version] {
		t, err := f.Time()
		if err != nil || t.IsZero() {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
	}
	return first, !first.IsZero()
}

// Latest returns the latest stable version. PyPI reports it in
// info.version; when that is missing the highest non-prerelease with
// files is used.
func (p *Project) Latest() string {
	if p.Info.Version != "" {
		return p.Info.Version
	}
	var best *semver.Version
	var bestRaw string
	for raw, files := range p.Releases {
		if len(files) == 0 {
			continue
		}
		v, err := semver.NewVersion(raw)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, raw
		}
	}
	return bestRaw
}

// IsInactive reports whether the project declares itself inactive.
func (p *Project) IsInactive() bool {
	for _, c := range p.Info.Classifiers {
		if c == InactiveClassifier {
			return true
		}
	}
	return false
}
