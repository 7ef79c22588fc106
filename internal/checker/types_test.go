package checker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPackage(t *testing.T) {
	tt := []struct {
		install string
		base    string
		purl    string
		github  bool
	}{
		{"six", "six", "pkg:pypi/six", false},
		{"apache-beam[gcp]", "apache-beam", "pkg:pypi/apache-beam?extras=gcp", false},
		{"PyYAML", "PyYAML", "pkg:pypi/pyyaml", false},
		{
			"git+git://github.com/googleapis/google-cloud-python.git#subdirectory=bigquery",
			"git+git://github.com/googleapis/google-cloud-python.git#subdirectory=bigquery",
			"pkg:github/googleapis/google-cloud-python#bigquery",
			true,
		},
		{
			"git+git://github.com/google/apitools.git",
			"git+git://github.com/google/apitools.git",
			"pkg:github/google/apitools",
			true,
		},
	}
	for _, tc := range tt {
		t.Run(tc.install, func(t *testing.T) {
			p := NewPackage(tc.install)
			if got := p.BaseName(); got != tc.base {
				t.Errorf("BaseName: got %q, want %q", got, tc.base)
			}
			if got := p.PURL(); got != tc.purl {
				t.Errorf("PURL: got %q, want %q", got, tc.purl)
			}
			if got := p.IsGitHub(); got != tc.github {
				t.Errorf("IsGitHub: got %v, want %v", got, tc.github)
			}
		})
	}
}

func TestResultKey(t *testing.T) {
	a := NewResult(NewPackages("b", "a"), 3, StatusSuccess, "")
	b := NewResult(NewPackages("a", "b"), 3, StatusCheckWarning, "conflict")
	if a.Key() != b.Key() {
		t.Errorf("pair order changed the key: %v != %v", a.Key(), b.Key())
	}
	c := NewResult(NewPackages("a", "b"), 2, StatusSuccess, "")
	if a.Key() == c.Key() {
		t.Error("python version not part of the key")
	}
	if got, want := a.InstallNames(), []string{"a", "b"}; !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
}

func TestResultValidate(t *testing.T) {
	for _, n := range []int{0, 3} {
		r := NewResult(make([]Package, n), 3, StatusSuccess, "")
		if err := r.Validate(); !errors.Is(err, ErrInvalidPackageCount) {
			t.Errorf("%d packages: got %v, want ErrInvalidPackageCount", n, err)
		}
	}
	if err := NewResult(NewPackages("a"), 3, StatusSuccess, "").Validate(); err != nil {
		t.Errorf("self result rejected: %v", err)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2019, 1, 16, 18, 35, 9, 0, time.UTC)
	for _, in := range []string{
		"2019-01-16T18:35:09",
		"2019-01-16T18:35:09Z",
		"2019-01-16 18:35:09",
		"2019-01-16 18:35:09+00:00",
	} {
		got, err := ParseTime(in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%q: got %v, want %v", in, got, want)
		}
	}
	if got, err := ParseTime("2019-01-16"); err != nil || !got.Equal(time.Date(2019, 1, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date only: got %v, %v", got, err)
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected an error for an unparseable timestamp")
	}
}

func TestCheckResponseDecode(t *testing.T) {
	body := `{
		"result": "SUCCESS",
		"packages": ["opencensus"],
		"description": null,
		"dependency_info": {
			"google-api-core": {
				"installed_version": "1.7.0",
				"installed_version_time": "2018-12-18T18:09:06",
				"latest_version": "1.7.0",
				"latest_version_time": "2018-12-18T18:09:06",
				"is_latest": true,
				"current_time": "2019-01-18T21:09:15.172255"
			}
		}
	}`
	var cr CheckResponse
	if err := json.Unmarshal([]byte(body), &cr); err != nil {
		t.Fatal(err)
	}
	res, err := cr.ToResult(3, []string{"opencensus"})
	if err != nil {
		t.Fatal(err)
	}
	released := time.Date(2018, 12, 18, 18, 9, 6, 0, time.UTC)
	want := map[string]VersionInfo{
		"google-api-core": {
			InstalledVersion:     "1.7.0",
			InstalledVersionTime: released,
			LatestVersion:        "1.7.0",
			LatestVersionTime:    released,
			IsLatest:             true,
			CurrentTime:          time.Date(2019, 1, 18, 21, 9, 15, 172255000, time.UTC),
		},
	}
	if !cmp.Equal(res.DependencyInfo, want) {
		t.Error(cmp.Diff(res.DependencyInfo, want))
	}
	if res.Status != StatusSuccess || res.Details != "" {
		t.Errorf("got %v %q", res.Status, res.Details)
	}
	if got := res.InstalledVersion("google-api-core"); got != "1.7.0" {
		t.Errorf("InstalledVersion: got %q", got)
	}

	// What the server writes must decode back to the same record.
	out, err := json.Marshal(NewCheckResponse(res))
	if err != nil {
		t.Fatal(err)
	}
	var again CheckResponse
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(again.DependencyInfo, want) {
		t.Error(cmp.Diff(again.DependencyInfo, want))
	}
}

func TestCheckResponseUnknownStatus(t *testing.T) {
	cr := CheckResponse{Result: "BROKEN"}
	if _, err := cr.ToResult(3, []string{"six"}); err == nil {
		t.Error("expected an error for an unknown status")
	}
}
