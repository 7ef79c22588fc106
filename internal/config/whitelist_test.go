package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultWhitelist(t *testing.T) {
	w, err := LoadWhitelist("")
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Tracked()) == 0 || len(w.HeadURLs()) == 0 {
		t.Fatalf("empty default whitelist: %d packages, %d heads", len(w.Tracked()), len(w.HeadURLs()))
	}
	for _, p := range []string{"google-api-core", "tensorflow", "apache-beam[gcp]"} {
		if !w.IsTracked(p) {
			t.Errorf("%s not tracked", p)
		}
	}
	head := "git+git://github.com/googleapis/google-cloud-python.git#subdirectory=api_core"
	if !w.IsHead(head) || !w.IsTracked(head) {
		t.Errorf("%s not a head", head)
	}
	if got := w.PyPIName(head); got != "google-api-core" {
		t.Errorf("PyPIName = %q", got)
	}
	if !w.IsUnsupported("tensorflow", 2) || w.IsUnsupported("tensorflow", 3) {
		t.Error("tensorflow python support is wrong")
	}
	// heads inherit the support of their PyPI package
	if !w.IsUnsupported("git+git://github.com/apache/beam.git#subdirectory=sdks/python", 3) {
		t.Error("beam head must be unsupported on python 3")
	}
	if !w.IsIgnored("Setuptools") || w.IsIgnored("six") {
		t.Error("ignored dependencies are wrong")
	}
}

func TestHeadURL(t *testing.T) {
	tt := []struct {
		head Head
		want string
	}{
		{Head{Repo: "googleapis/python-ndb"}, "git+git://github.com/googleapis/python-ndb.git"},
		{Head{Repo: "protocolbuffers/protobuf", Subdirectory: "python"}, "git+git://github.com/protocolbuffers/protobuf.git#subdirectory=python"},
	}
	for _, tc := range tt {
		if got := tc.head.URL(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}

func TestLoadWhitelistFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.yaml")
	data := []byte(`
packages: [b, a]
github_heads:
  - {repo: org/a, package: a}
unsupported:
  2: [b]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := LoadWhitelist(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, w.Tracked()); diff != "" {
		t.Errorf("Tracked mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"git+git://github.com/org/a.git"}, w.HeadURLs()); diff != "" {
		t.Errorf("HeadURLs mismatch (-want +got):\n%s", diff)
	}
	if !w.IsUnsupported("b", 2) || w.IsUnsupported("a", 2) {
		t.Error("unsupported mismatch")
	}
	if w.IsIgnored("pip") {
		t.Error("file without ignored_dependencies ignores nothing")
	}

	if _, err := LoadWhitelist(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, err := ParseWhitelist([]byte("packages: {")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("CHECK_WORKERS", "not-a-number")
	t.Setenv("PROBE_TIMEOUT", "1m")
	cfg := Load()
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver %q", cfg.Store.Driver)
	}
	if cfg.Orchestrator.Workers != 20 {
		t.Errorf("workers %d", cfg.Orchestrator.Workers)
	}
	if cfg.Probe.Timeout.String() != "1m0s" {
		t.Errorf("timeout %s", cfg.Probe.Timeout)
	}
	if diff := cmp.Diff([]string{"python3", "-m", "pip"}, cfg.Probe.PythonCommands[3]); diff != "" {
		t.Errorf("python 3 command mismatch (-want +got):\n%s", diff)
	}
}
