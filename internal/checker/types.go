package checker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	packageurl "github.com/package-url/packageurl-go"
)

// Status is the outcome of one compatibility check.
type Status string

const (
	StatusUnknown      Status = "UNKNOWN"
	StatusSuccess      Status = "SUCCESS"
	StatusInstallError Status = "INSTALL_ERROR"
	StatusCheckWarning Status = "CHECK_WARNING"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusUnknown, StatusSuccess, StatusInstallError, StatusCheckWarning:
		return st, nil
	}
	return "", fmt.Errorf("unknown check status %q", s)
}

// Failed reports whether the status is an install or check failure.
func (s Status) Failed() bool {
	return s == StatusInstallError || s == StatusCheckWarning
}

var headURL = regexp.MustCompile(`^git\+git://github\.com/([^/]+)/([^/#]+?)\.git(?:#subdirectory=(.+))?$`)

// Package identifies something pip can install: a PyPI name, optionally
// with extras, or a GitHub URL.
type Package struct {
	InstallName  string `json:"install_name"`
	FriendlyName string `json:"friendly_name"`
}

func NewPackage(installName string) Package {
	return Package{InstallName: installName, FriendlyName: installName}
}

func NewPackages(installNames ...string) []Package {
	out := make([]Package, len(installNames))
	for i, n := range installNames {
		out[i] = NewPackage(n)
	}
	return out
}

// BaseName strips extras: "apache-beam[gcp]" becomes "apache-beam".
func (p Package) BaseName() string {
	if i := strings.IndexByte(p.InstallName, '['); i >= 0 {
		return p.InstallName[:i]
	}
	return p.InstallName
}

func (p Package) IsGitHub() bool {
	return headURL.MatchString(p.InstallName)
}

// PURL returns the package-url for the package. GitHub installs map to
// pkg:github, everything else to pkg:pypi.
func (p Package) PURL() string {
	if m := headURL.FindStringSubmatch(p.InstallName); m != nil {
		return packageurl.NewPackageURL(packageurl.TypeGithub, m[1], m[2], "", nil, m[3]).ToString()
	}
	var q packageurl.Qualifiers
	if i := strings.IndexByte(p.InstallName, '['); i >= 0 {
		extras := strings.TrimSuffix(p.InstallName[i+1:], "]")
		q = packageurl.QualifiersFromMap(map[string]string{"extras": extras})
	}
	return packageurl.NewPackageURL(packageurl.TypePyPi, "", strings.ToLower(p.BaseName()), "", q, "").ToString()
}

func (p Package) String() string { return p.InstallName }

// Result is the outcome of checking one or two packages under one
// python major version. Results are never mutated after creation.
type Result struct {
	Packages       []Package
	PythonVersion  int
	Status         Status
	Details        string
	DependencyInfo map[string]VersionInfo
	Timestamp      time.Time
}

func NewResult(packages []Package, pythonVersion int, status Status, details string) *Result {
	return &Result{
		Packages:      packages,
		PythonVersion: pythonVersion,
		Status:        status,
		Details:       details,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate rejects results that are neither self nor pairwise checks.
func (r *Result) Validate() error {
	if n := len(r.Packages); n < 1 || n > 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidPackageCount, n)
	}
	return nil
}

func (r *Result) IsSelf() bool { return len(r.Packages) == 1 }

// InstallNames returns the install names in canonical (sorted) order.
func (r *Result) InstallNames() []string {
	names := make([]string, len(r.Packages))
	for i, p := range r.Packages {
		names[i] = p.InstallName
	}
	sort.Strings(names)
	return names
}

// Key groups results that supersede each other.
type Key struct {
	Packages      string
	PythonVersion int
}

func (r *Result) Key() Key {
	return Key{Packages: strings.Join(r.InstallNames(), "\x00"), PythonVersion: r.PythonVersion}
}

// InstalledVersion returns the version of the checked package recorded
// in the dependency snapshot, or "" when unknown.
func (r *Result) InstalledVersion(pypiName string) string {
	if r.DependencyInfo == nil {
		return ""
	}
	name := NewPackage(pypiName).BaseName()
	if info, ok := r.DependencyInfo[name]; ok {
		return info.InstalledVersion
	}
	return r.DependencyInfo[strings.ToLower(name)].InstalledVersion
}

// VersionInfo describes one installed dependency against its latest
// PyPI release.
type VersionInfo struct {
	InstalledVersion     string
	InstalledVersionTime time.Time
	LatestVersion        string
	LatestVersionTime    time.Time
	IsLatest             bool
	CurrentTime          time.Time
}

const wireTimeLayout = "2006-01-02T15:04:05.999999"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime accepts the timestamp formats seen from PyPI, the check
// server and the SQL store. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type wireVersionInfo struct {
	InstalledVersion     string  `json:"installed_version"`
	InstalledVersionTime *string `json:"installed_version_time"`
	LatestVersion        string  `json:"latest_version"`
	LatestVersionTime    *string `json:"latest_version_time"`
	IsLatest             bool    `json:"is_latest"`
	CurrentTime          *string `json:"current_time"`
}

func formatWireTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(wireTimeLayout)
	return &s
}

func parseWireTime(s *string) (time.Time, error) {
	if s == nil {
		return time.Time{}, nil
	}
	return ParseTime(*s)
}

func (v VersionInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireVersionInfo{
		InstalledVersion:     v.InstalledVersion,
		InstalledVersionTime: formatWireTime(v.InstalledVersionTime),
		LatestVersion:        v.LatestVersion,
		LatestVersionTime:    formatWireTime(v.LatestVersionTime),
		IsLatest:             v.IsLatest,
		CurrentTime:          formatWireTime(v.CurrentTime),
	})
}

func (v *VersionInfo) UnmarshalJSON(data []byte) error {
	var w wireVersionInfo
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var err error
	out := VersionInfo{
		InstalledVersion: w.InstalledVersion,
		LatestVersion:    w.LatestVersion,
		IsLatest:         w.IsLatest,
	}
	if out.InstalledVersionTime, err = parseWireTime(w.InstalledVersionTime); err != nil {
		return err
	}
	if out.LatestVersionTime, err = parseWireTime(w.LatestVersionTime); err != nil {
		return err
	}
	if out.CurrentTime, err = parseWireTime(w.CurrentTime); err != nil {
		return err
	}
	*v = out
	return nil
}

// CheckResponse is the JSON body served by the check endpoint.
type CheckResponse struct {
	Result         Status                 `json:"result"`
	Packages       []string               `json:"packages"`
	Description    *string                `json:"description"`
	DependencyInfo map[string]VersionInfo `json:"dependency_info"`
}

func NewCheckResponse(r *Result) CheckResponse {
	resp := CheckResponse{
		Result:         r.Status,
		Packages:       make([]string, len(r.Packages)),
		DependencyInfo: r.DependencyInfo,
	}
	for i, p := range r.Packages {
		resp.Packages[i] = p.InstallName
	}
	if r.Details != "" {
		d := r.Details
		resp.Description = &d
	}
	return resp
}

// ToResult converts a response into a Result. requested is used when the
// response does not echo the package list.
func (c CheckResponse) ToResult(pythonVersion int, requested []string) (*Result, error) {
	status, err := ParseStatus(string(c.Result))
	if err != nil {
		return nil, err
	}
	names := c.Packages
	if len(names) == 0 {
		names = requested
	}
	var details string
	if c.Description != nil {
		details = *c.Description
	}
	r := NewResult(NewPackages(names...), pythonVersion, status, details)
	r.DependencyInfo = c.DependencyInfo
	return r, nil
}
