package pypi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/purelind/pycompat-check/internal/checker"
)

const sixJSON = `{
	"info": {"name": "six", "version": "1.12.0", "classifiers": ["Programming Language :: Python :: 3"]},
	"releases": {
		"1.11.0": [{"upload_time": "2017-09-17T18:46:53", "upload_time_iso_8601": "2017-09-17T18:46:53.000000Z"}],
		"1.12.0": [
			{"upload_time": "2018-12-10T00:00:00", "upload_time_iso_8601": "2018-12-10T00:00:00.000000Z"},
			{"upload_time": "2018-12-09T22:26:07", "upload_time_iso_8601": "2018-12-09T22:26:07.000000Z"}
		]
	}
}`

const oldJSON = `{
	"info": {"name": "oldpkg", "version": "", "classifiers": ["Development Status :: 7 - Inactive"]},
	"releases": {
		"0.9.0": [{"upload_time": "2015-01-01T00:00:00"}],
		"1.0.0": [{"upload_time": "2016-01-01T00:00:00"}],
		"2.0.0-rc1": [{"upload_time": "2017-01-01T00:00:00"}],
		"3.0.0": []
	}
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/six/json", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(sixJSON)) })
	mux.HandleFunc("/pypi/oldpkg/json", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(oldJSON)) })
	mux.HandleFunc("/pypi/oldpkg/1.0.0/json", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(oldJSON)) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProject(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/pypi", 0)
	ctx := context.Background()

	six, err := c.Project(ctx, "six")
	if err != nil {
		t.Fatal(err)
	}
	if got := six.Latest(); got != "1.12.0" {
		t.Errorf("Latest: got %q", got)
	}
	rt, ok := six.ReleaseTime("1.12.0")
	if want := time.Date(2018, 12, 9, 22, 26, 7, 0, time.UTC); !ok || !rt.Equal(want) {
		t.Errorf("ReleaseTime: got %v, want %v", rt, want)
	}
	if six.IsInactive() {
		t.Error("six is not inactive")
	}

	old, err := c.Release(ctx, "oldpkg", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	// Prereleases and releases without files are not candidates.
	if got := old.Latest(); got != "1.0.0" {
		t.Errorf("Latest: got %q, want 1.0.0", got)
	}
	if !old.IsInactive() {
		t.Error("oldpkg should be inactive")
	}

	if _, err := c.Project(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestParseRequirements(t *testing.T) {
	freeze := `# comment
six==1.11.0
-e git+https://github.com/foo/bar.git#egg=bar
pkg @ file:///tmp/pkg
google-api-core==1.7.0

broken
`
	got := ParseRequirements(freeze)
	want := map[string]string{"six": "1.11.0", "google-api-core": "1.7.0"}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
}

func TestResolve(t *testing.T) {
	srv := newTestServer(t)
	r := NewResolver(NewClient(srv.URL+"/pypi", 0), 2)
	now := time.Date(2019, 1, 18, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	got, err := r.Resolve(context.Background(), "six==1.11.0\nmissing==1.0\n")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]checker.VersionInfo{
		"six": {
			InstalledVersion:     "1.11.0",
			InstalledVersionTime: time.Date(2017, 9, 17, 18, 46, 53, 0, time.UTC),
			LatestVersion:        "1.12.0",
			LatestVersionTime:    time.Date(2018, 12, 9, 22, 26, 7, 0, time.UTC),
			IsLatest:             false,
			CurrentTime:          now,
		},
	}
	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
}
