package status

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/database"
	"github.com/purelind/pycompat-check/internal/freshness"
)

// PythonVersions are the python major versions results are tracked for.
var PythonVersions = []int{2, 3}

// Reader is the part of the result store the aggregator needs.
type Reader interface {
	SelfCompatibility(ctx context.Context, pkg checker.Package) ([]*checker.Result, error)
	PairwiseForPackage(ctx context.Context, pkg checker.Package) (map[database.Pair][]*checker.Result, error)
}

type OutdatedChecker interface {
	Check(ctx context.Context, installName string) ([]freshness.OutdatedDependency, error)
}

type DeprecatedChecker interface {
	Find(ctx context.Context, installName string) ([]string, error)
}

// Aggregator computes the self, pairwise and dependency results of a
// package and folds them into one overall status. Untracked packages are
// never looked up and report UNKNOWN.
type Aggregator struct {
	store      Reader
	outdated   OutdatedChecker
	deprecated DeprecatedChecker
	whitelist  *config.Whitelist
	now        func() time.Time
}

func NewAggregator(store Reader, outdated OutdatedChecker, deprecated DeprecatedChecker, w *config.Whitelist) *Aggregator {
	return &Aggregator{
		store:      store,
		outdated:   outdated,
		deprecated: deprecated,
		whitelist:  w,
		now:        time.Now,
	}
}

// SelfCompatibility reports the latest self check of pkg per version.
func (a *Aggregator) SelfCompatibility(ctx context.Context, pkg string) (CompatResult, error) {
	if !a.whitelist.IsTracked(pkg) {
		return DefaultCompat(Unknown, Details{}), nil
	}
	results, err := a.store.SelfCompatibility(ctx, checker.NewPackage(pkg))
	if err != nil {
		return CompatResult{}, fmt.Errorf("failed to read self compatibility of %s: %w", pkg, err)
	}
	return a.foldSelf(pkg, results), nil
}

func (a *Aggregator) foldSelf(pkg string, results []*checker.Result) CompatResult {
	byVersion := latestByVersion(results)
	var out CompatResult
	var newest time.Time
	for _, v := range PythonVersions {
		if a.whitelist.IsUnsupported(pkg, v) {
			out.set(v, VersionResult{Status: Unknown, Details: TextDetails(NotSupported)})
			continue
		}
		r, ok := byVersion[v]
		if !ok {
			out.set(v, VersionResult{Status: Calculating})
			continue
		}
		vr := VersionResult{Status: FromCheck(r.Status)}
		if vr.Status != Success {
			vr.Details = TextDetails(orEmpty(r.Details))
		}
		out.set(v, vr)
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	out.Timestamp = formatTime(newest)
	return out
}

// PairwiseCompatibility reports how pkg fares when installed next to each
// other tracked package. A failed pair is not held against pkg when the
// other package does not support the version or fails on its own.
func (a *Aggregator) PairwiseCompatibility(ctx context.Context, pkg string) (CompatResult, error) {
	if !a.whitelist.IsTracked(pkg) {
		return DefaultCompat(Unknown, PackageDetails()), nil
	}
	pairs, err := a.store.PairwiseForPackage(ctx, checker.NewPackage(pkg))
	if err != nil {
		return CompatResult{}, fmt.Errorf("failed to read pairwise compatibility of %s: %w", pkg, err)
	}
	others := a.others(pkg)
	selfs := make(map[string]map[int]*checker.Result, len(others))
	for _, o := range others {
		results, err := a.store.SelfCompatibility(ctx, checker.NewPackage(o))
		if err != nil {
			return CompatResult{}, fmt.Errorf("failed to read self compatibility of %s: %w", o, err)
		}
		selfs[o] = latestByVersion(results)
	}
	return a.foldPairwise(pkg, others, pairs, selfs), nil
}

func (a *Aggregator) foldPairwise(pkg string, others []string, pairs map[database.Pair][]*checker.Result, selfs map[string]map[int]*checker.Result) CompatResult {
	var out CompatResult
	var newest time.Time
	for _, v := range PythonVersions {
		if a.whitelist.IsUnsupported(pkg, v) {
			out.set(v, VersionResult{Status: Unknown, Details: TextDetails(NotSupported)})
			continue
		}
		vr := VersionResult{Status: Success, Details: PackageDetails()}
		pending := false
		for _, o := range others {
			if a.whitelist.IsUnsupported(o, v) {
				continue
			}
			r, ok := latestByVersion(pairs[database.NewPair(pkg, o)])[v]
			if !ok {
				pending = true
				continue
			}
			if r.Timestamp.After(newest) {
				newest = r.Timestamp
			}
			if r.Status == checker.StatusSuccess {
				continue
			}
			if self, ok := selfs[o][v]; !ok || self.Status != checker.StatusSuccess {
				continue
			}
			if vr.Status == Success {
				vr.Status = FromCheck(r.Status)
			}
			vr.Details.Packages[o] = orEmpty(r.Details)
		}
		if vr.Status == Success && pending {
			vr.Status = Calculating
		}
		out.set(v, vr)
	}
	out.Timestamp = formatTime(newest)
	return out
}

// others lists the tracked packages pkg is paired with, sorted. A GitHub
// head is not paired with its own PyPI release.
func (a *Aggregator) others(pkg string) []string {
	pypiName := a.whitelist.PyPIName(pkg)
	var out []string
	for _, p := range a.whitelist.Tracked() {
		if p == pkg || p == pypiName {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Dependency reports the freshness of the dependencies of pkg.
func (a *Aggregator) Dependency(ctx context.Context, pkg string) (DependencyResult, error) {
	if !a.whitelist.IsTracked(pkg) {
		return DefaultDependency(Unknown), nil
	}
	deps, err := a.outdated.Check(ctx, pkg)
	if err != nil {
		return DependencyResult{}, fmt.Errorf("failed to check dependencies of %s: %w", pkg, err)
	}
	var deprecated []string
	if a.deprecated != nil {
		deprecated, err = a.deprecated.Find(ctx, pkg)
		if err != nil {
			return DependencyResult{}, fmt.Errorf("failed to find deprecated dependencies of %s: %w", pkg, err)
		}
	}
	return NewDependencyResult(deps, deprecated, a.now()), nil
}

// Overall folds the three results of pkg into one status: SUCCESS when
// every supported version succeeds and the dependencies are up to date,
// otherwise CALCULATING, then UNKNOWN, then CHECK_WARNING.
func (a *Aggregator) Overall(pkg string, self, pairwise CompatResult, dep DependencyResult) Status {
	signals := []Status{dep.Status}
	for _, v := range PythonVersions {
		if a.whitelist.IsUnsupported(pkg, v) {
			continue
		}
		signals = append(signals, self.Version(v).Status, pairwise.Version(v).Status)
	}
	return Fold(signals...)
}

// Fold combines compatibility and dependency statuses.
func Fold(signals ...Status) Status {
	ok := len(signals) > 0
	calculating, unknown := false, false
	for _, s := range signals {
		switch s {
		case Success, UpToDate:
		case Calculating:
			calculating = true
			ok = false
		case Unknown:
			unknown = true
			ok = false
		default:
			ok = false
		}
	}
	switch {
	case ok:
		return Success
	case calculating:
		return Calculating
	case unknown:
		return Unknown
	}
	return CheckWarning
}

// latestByVersion indexes results by python version, newest wins.
func latestByVersion(results []*checker.Result) map[int]*checker.Result {
	out := make(map[int]*checker.Result, 2)
	for _, r := range results {
		if cur, ok := out[r.PythonVersion]; ok && r.Timestamp.Before(cur.Timestamp) {
			continue
		}
		out[r.PythonVersion] = r
	}
	return out
}

func orEmpty(s string) string {
	if s == "" {
		return EmptyDetails
	}
	return s
}
