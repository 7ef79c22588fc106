package badge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/purelind/pycompat-check/internal/cache"
	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/database"
	"github.com/purelind/pycompat-check/internal/freshness"
	"github.com/purelind/pycompat-check/internal/status"
)

type fixedCommits map[string]string

func (f fixedCommits) LatestCommit(_ context.Context, pkg string) (string, bool) {
	sha, ok := f[pkg]
	return sha, ok
}

var head = config.Head{Repo: "org/a", Package: "a"}

func newService(t *testing.T, commits fixedCommits) (*Service, cache.Cache) {
	t.Helper()
	w := config.NewWhitelist([]string{"a", "b"}, []config.Head{head}, nil)
	store := database.NewMemory(w.PyPIName)
	var results []*checker.Result
	for _, v := range []int{2, 3} {
		for _, pkgs := range [][]string{{"a"}, {"b"}, {"a", "b"}, {head.URL()}, {head.URL(), "b"}} {
			r := checker.NewResult(checker.NewPackages(pkgs...), v, checker.StatusSuccess, "")
			r.Timestamp = time.Date(2019, 1, 16, 12, 0, 0, 0, time.UTC)
			results = append(results, r)
		}
	}
	if err := store.Save(context.Background(), results); err != nil {
		t.Fatal(err)
	}
	agg := status.NewAggregator(store, freshness.NewHighlighter(store, w), nil, w)
	c := cache.NewLocal()
	return NewService(agg, c, commits, w), c
}

func TestKey(t *testing.T) {
	if got := Key("requests", "", SelfCompatibility); got != "requests_self_comp_badge" {
		t.Errorf("got %q", got)
	}
	if got := Key("git+git://github.com/org/a.git", "abc", Dependency); got != "git+git://github.com/org/a.git_abc_dependency_badge" {
		t.Errorf("got %q", got)
	}
}

func TestLookupDefaults(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()

	sum, err := s.Lookup(ctx, "left-pad")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Status != status.Unknown || sum.SelfCompatibility.PY3.Status != status.Unknown {
		t.Errorf("untracked: got %+v", sum)
	}

	sum, err = s.Lookup(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Status != status.Calculating || sum.Dependency.Status != status.Calculating {
		t.Errorf("not yet computed: got %+v", sum)
	}
	if sum.PURL != "pkg:pypi/a" {
		t.Errorf("purl: %q", sum.PURL)
	}
}

func TestRefresh(t *testing.T) {
	s, c := newService(t, nil)
	ctx := context.Background()
	if err := s.Refresh(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	for _, kind := range []Kind{SelfCompatibility, GoogleCompatibility, Dependency} {
		if _, ok, _ := c.Get(ctx, Key("a", "", kind)); !ok {
			t.Errorf("%s not cached", kind)
		}
	}
	sum, err := s.Lookup(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Status != status.Success {
		t.Errorf("got %s: %+v", sum.Status, sum)
	}
	if sum.Timestamp == "" {
		t.Error("missing timestamp")
	}

	// Untracked packages are never computed.
	if err := s.Refresh(ctx, "left-pad"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, Key("left-pad", "", SelfCompatibility)); ok {
		t.Error("untracked package was cached")
	}
}

func TestRefreshGitHubHead(t *testing.T) {
	commits := fixedCommits{head.URL(): "abc"}
	s, c := newService(t, commits)
	ctx := context.Background()
	if err := s.RefreshAll(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, Key(head.URL(), "abc", SelfCompatibility)); !ok {
		t.Fatal("head result not cached under its commit")
	}
	sum, err := s.Lookup(ctx, head.URL())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Status != status.Success || sum.Commit != "abc" {
		t.Errorf("got %+v", sum)
	}

	// A new commit has no results yet.
	commits[head.URL()] = "def"
	sum, err = s.Lookup(ctx, head.URL())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Status != status.Calculating {
		t.Errorf("new commit: got %s", sum.Status)
	}
}

func TestDisplay(t *testing.T) {
	if got := DisplayName("git+git://github.com/org/a.git", ""); got != GitHubHeadName {
		t.Errorf("got %q", got)
	}
	if got := DisplayName("requests", "my badge"); got != "my badge" {
		t.Errorf("got %q", got)
	}

	w := config.NewWhitelist([]string{"a", "tf"}, nil, map[int][]string{2: {"tf"}})
	s := NewService(nil, cache.NewLocal(), nil, w)
	res := status.CompatResult{
		PY2: status.VersionResult{Status: status.InstallError},
		PY3: status.VersionResult{Status: status.Success},
	}
	if got := s.DisplayStatus("a", res); got != status.InstallError {
		t.Errorf("a: got %s", got)
	}
	if got := s.DisplayStatus("tf", res); got != status.Success {
		t.Errorf("tf: got %s", got)
	}
}

func TestRender(t *testing.T) {
	svg, err := Render("<pkg>", status.CheckWarning)
	if err != nil {
		t.Fatal(err)
	}
	out := string(svg)
	for _, want := range []string{"&lt;pkg&gt;", "CHECK WARNING", "#e05d44", `xmlns="http://www.w3.org/2000/svg"`} {
		if !strings.Contains(out, want) {
			t.Errorf("badge lacks %q:\n%s", want, out)
		}
	}
}
