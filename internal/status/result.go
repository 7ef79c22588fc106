package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/purelind/pycompat-check/internal/freshness"
)

// TimestampLayout formats result timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

const (
	// EmptyDetails stands in for a failure that came without an explanation.
	EmptyDetails = "NO DETAILS"
	// NotSupported explains a version the package does not support.
	NotSupported = "The package is not supported by checker server."
)

// Details is either a free-text explanation or a mapping from package
// name to explanation. A zero Details is JSON null.
type Details struct {
	Text     string
	Packages map[string]string
}

func TextDetails(s string) Details { return Details{Text: s} }

// PackageDetails returns an empty package mapping, rendered as {}.
func PackageDetails() Details { return Details{Packages: map[string]string{}} }

func (d Details) IsZero() bool { return d.Text == "" && d.Packages == nil }

func (d Details) MarshalJSON() ([]byte, error) {
	switch {
	case d.Packages != nil:
		return json.Marshal(d.Packages)
	case d.Text != "":
		return json.Marshal(d.Text)
	}
	return []byte("null"), nil
}

func (d *Details) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*d = Details{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Details{Text: s}
		return nil
	case len(data) > 0 && data[0] == '{':
		m := map[string]string{}
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*d = Details{Packages: m}
		return nil
	}
	return fmt.Errorf("details must be a string, an object or null: %s", data)
}

// VersionResult is the status of a package under one python version.
type VersionResult struct {
	Status  Status  `json:"status"`
	Details Details `json:"details"`
}

// CompatResult is a compatibility status broken down by python version.
type CompatResult struct {
	PY2       VersionResult `json:"py2"`
	PY3       VersionResult `json:"py3"`
	Timestamp string        `json:"timestamp,omitempty"`
}

// DefaultCompat builds a result with the same status for both versions.
func DefaultCompat(s Status, details Details) CompatResult {
	return CompatResult{
		PY2: VersionResult{Status: s, Details: details},
		PY3: VersionResult{Status: s, Details: details},
	}
}

// Version returns the result for a python major version.
func (c CompatResult) Version(v int) VersionResult {
	if v == 2 {
		return c.PY2
	}
	return c.PY3
}

func (c *CompatResult) set(v int, r VersionResult) {
	if v == 2 {
		c.PY2 = r
		return
	}
	c.PY3 = r
}

// DependencyDetail describes one outdated dependency on a badge.
type DependencyDetail struct {
	InstalledVersion string `json:"installed_version"`
	LatestVersion    string `json:"latest_version"`
	Priority         string `json:"priority"`
	Detail           string `json:"detail"`
}

// DependencyResult is the dependency freshness status of a package.
type DependencyResult struct {
	Status         Status                      `json:"status"`
	Details        map[string]DependencyDetail `json:"details"`
	DeprecatedDeps string                      `json:"deprecated_deps"`
	Timestamp      string                      `json:"timestamp,omitempty"`
}

func DefaultDependency(s Status) DependencyResult {
	return DependencyResult{Status: s, Details: map[string]DependencyDetail{}}
}

// NewDependencyResult summarizes outdated and deprecated dependencies.
// The status is the highest priority among the outdated ones.
func NewDependencyResult(deps []freshness.OutdatedDependency, deprecated []string, now time.Time) DependencyResult {
	r := DependencyResult{
		Status:         FromLevel(freshness.Overall(deps)),
		Details:        make(map[string]DependencyDetail, len(deps)),
		DeprecatedDeps: strings.Join(deprecated, ", "),
		Timestamp:      formatTime(now),
	}
	for _, d := range deps {
		r.Details[d.Name] = DependencyDetail{
			InstalledVersion: d.InstalledVersion,
			LatestVersion:    d.LatestVersion,
			Priority:         d.Priority.Level.String(),
			Detail:           d.Priority.Details,
		}
	}
	return r
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
