package database

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver"

	"github.com/purelind/pycompat-check/internal/checker"
)

// ErrNotPair is returned when pair compatibility is asked for anything
// but exactly two packages.
var ErrNotPair = errors.New("pair compatibility needs exactly 2 packages")

// Store persists check results. Rows are appended and never updated; the
// newest result per (package set, python version) wins on read.
type Store interface {
	Save(ctx context.Context, results []*checker.Result) error
	SelfCompatibility(ctx context.Context, pkg checker.Package) ([]*checker.Result, error)
	PairCompatibility(ctx context.Context, pkgs []checker.Package) ([]*checker.Result, error)
	CompatibilityCombinations(ctx context.Context, pkgs []checker.Package) (map[Pair][]*checker.Result, error)
	PairwiseForPackage(ctx context.Context, pkg checker.Package) (map[Pair][]*checker.Result, error)
	DependencyInfo(ctx context.Context, installName string) (map[string]checker.VersionInfo, error)
	Packages(ctx context.Context) ([]checker.Package, error)
}

// Pair is an unordered pair of install names in canonical order.
type Pair struct {
	Lower  string `json:"lower"`
	Higher string `json:"higher"`
}

func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Lower: a, Higher: b}
}

// Other returns the member of the pair that is not name.
func (p Pair) Other(name string) string {
	if p.Lower == name {
		return p.Higher
	}
	return p.Lower
}

// Latest keeps the newest result per key. results must be in insertion
// order: on equal timestamps the later one wins. The output is sorted by
// package set, then python version.
func Latest(results []*checker.Result) []*checker.Result {
	idx := make(map[checker.Key]int, len(results))
	var out []*checker.Result
	for _, r := range results {
		k := r.Key()
		i, ok := idx[k]
		if !ok {
			idx[k] = len(out)
			out = append(out, r)
			continue
		}
		if !r.Timestamp.Before(out[i].Timestamp) {
			out[i] = r
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Packages != kj.Packages {
			return ki.Packages < kj.Packages
		}
		return ki.PythonVersion < kj.PythonVersion
	})
	return out
}

// combinations returns every unordered pair of distinct install names.
func combinations(pkgs []checker.Package) map[Pair]struct{} {
	out := make(map[Pair]struct{})
	for i := range pkgs {
		for j := i + 1; j < len(pkgs); j++ {
			if pkgs[i].InstallName == pkgs[j].InstallName {
				continue
			}
			out[NewPair(pkgs[i].InstallName, pkgs[j].InstallName)] = struct{}{}
		}
	}
	return out
}

// prepare validates a batch and returns copies of its results, with a
// missing timestamp set to now.
func prepare(results []*checker.Result) ([]*checker.Result, error) {
	now := time.Now().UTC()
	out := make([]*checker.Result, len(results))
	for i, r := range results {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		c := *r
		if c.Timestamp.IsZero() {
			c.Timestamp = now
		}
		out[i] = &c
	}
	return out, nil
}

// snapshots picks, per package, the self result whose dependency info
// should be stored: the one that installed the highest version of the
// package itself.
func snapshots(results []*checker.Result, pypiName func(string) string) map[string]*checker.Result {
	out := make(map[string]*checker.Result)
	for _, r := range results {
		if !r.IsSelf() || len(r.DependencyInfo) == 0 {
			continue
		}
		name := r.Packages[0].InstallName
		cur, ok := out[name]
		if !ok {
			out[name] = r
			continue
		}
		pn := pypiName(name)
		if compareVersions(r.InstalledVersion(pn), cur.InstalledVersion(pn)) >= 0 {
			out[name] = r
		}
	}
	return out
}

// compareVersions orders versions semantically when both parse, and
// lexically otherwise. An empty version sorts first.
func compareVersions(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}

func identity(s string) string { return s }
