package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed whitelist.yaml
var defaultWhitelist []byte

// Head is a package installed from the default branch of a GitHub repo.
type Head struct {
	Repo         string `yaml:"repo"`
	Subdirectory string `yaml:"subdirectory,omitempty"`
	Package      string `yaml:"package"`
}

// URL is the pip install specifier for the head.
func (h Head) URL() string {
	u := fmt.Sprintf("git+git://github.com/%s.git", h.Repo)
	if h.Subdirectory != "" {
		u += "#subdirectory=" + h.Subdirectory
	}
	return u
}

// Whitelist is the static set of packages the system is allowed to
// check. It is not modified after loading.
type Whitelist struct {
	Packages    []string         `yaml:"packages"`
	GitHubHeads []Head           `yaml:"github_heads"`
	Unsupported map[int][]string `yaml:"unsupported"`
	Ignored     []string         `yaml:"ignored_dependencies"`

	tracked     map[string]struct{}
	heads       map[string]Head
	unsupported map[int]map[string]struct{}
	ignored     map[string]struct{}
}

// LoadWhitelist reads a whitelist file, or the compiled-in default when
// path is empty.
func LoadWhitelist(path string) (*Whitelist, error) {
	if path == "" {
		return ParseWhitelist(defaultWhitelist)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read whitelist: %w", err)
	}
	return ParseWhitelist(data)
}

func ParseWhitelist(data []byte) (*Whitelist, error) {
	var w Whitelist
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse whitelist: %w", err)
	}
	w.index()
	return &w, nil
}

// NewWhitelist builds a whitelist in code, mostly for tests.
func NewWhitelist(packages []string, heads []Head, unsupported map[int][]string) *Whitelist {
	w := &Whitelist{
		Packages:    packages,
		GitHubHeads: heads,
		Unsupported: unsupported,
		Ignored:     []string{"pip", "setuptools", "wheel", "virtualenv"},
	}
	w.index()
	return w
}

func (w *Whitelist) index() {
	w.tracked = make(map[string]struct{}, len(w.Packages))
	for _, p := range w.Packages {
		w.tracked[p] = struct{}{}
	}
	w.heads = make(map[string]Head, len(w.GitHubHeads))
	for _, h := range w.GitHubHeads {
		w.heads[h.URL()] = h
	}
	w.unsupported = make(map[int]map[string]struct{}, len(w.Unsupported))
	for v, names := range w.Unsupported {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		w.unsupported[v] = set
	}
	w.ignored = make(map[string]struct{}, len(w.Ignored))
	for _, n := range w.Ignored {
		w.ignored[strings.ToLower(n)] = struct{}{}
	}
}

// Tracked returns the tracked PyPI package names in file order.
func (w *Whitelist) Tracked() []string {
	out := make([]string, len(w.Packages))
	copy(out, w.Packages)
	return out
}

// HeadURLs returns the install specifiers of every GitHub head, sorted.
func (w *Whitelist) HeadURLs() []string {
	out := make([]string, 0, len(w.heads))
	for u := range w.heads {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// IsTracked reports whether name is a tracked PyPI package or GitHub head.
func (w *Whitelist) IsTracked(name string) bool {
	if _, ok := w.tracked[name]; ok {
		return true
	}
	_, ok := w.heads[name]
	return ok
}

func (w *Whitelist) IsHead(name string) bool {
	_, ok := w.heads[name]
	return ok
}

// PyPIName maps a GitHub head URL to its PyPI name. Other names are
// returned unchanged.
func (w *Whitelist) PyPIName(name string) string {
	if h, ok := w.heads[name]; ok {
		return h.Package
	}
	return name
}

// Head returns the head entry for a GitHub install specifier.
func (w *Whitelist) Head(name string) (Head, bool) {
	h, ok := w.heads[name]
	return h, ok
}

// IsUnsupported reports whether name (or the PyPI package a head maps
// to) is known not to support the python major version.
func (w *Whitelist) IsUnsupported(name string, pythonVersion int) bool {
	set := w.unsupported[pythonVersion]
	if _, ok := set[name]; ok {
		return true
	}
	_, ok := set[w.PyPIName(name)]
	return ok
}

// IsIgnored reports whether a dependency is excluded from freshness checks.
func (w *Whitelist) IsIgnored(dep string) bool {
	_, ok := w.ignored[strings.ToLower(dep)]
	return ok
}
