package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/purelind/pycompat-check/internal/checker"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	self     []*checker.Result
	pairs    []*checker.Result
	deps     map[string]snapshot
	pypiName func(string) string
}

type snapshot struct {
	at   time.Time
	info map[string]checker.VersionInfo
}

// NewMemory returns an empty store. pypiName maps GitHub install names to
// PyPI names and may be nil.
func NewMemory(pypiName func(string) string) *Memory {
	if pypiName == nil {
		pypiName = identity
	}
	return &Memory{
		deps:     make(map[string]snapshot),
		pypiName: pypiName,
	}
}

func (m *Memory) Save(_ context.Context, results []*checker.Result) error {
	results, err := prepare(results)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		if r.IsSelf() {
			m.self = append(m.self, r)
		} else {
			m.pairs = append(m.pairs, r)
		}
	}
	for name, r := range snapshots(results, m.pypiName) {
		if cur, ok := m.deps[name]; ok && r.Timestamp.Before(cur.at) {
			continue
		}
		info := make(map[string]checker.VersionInfo, len(r.DependencyInfo))
		for k, v := range r.DependencyInfo {
			info[k] = v
		}
		m.deps[name] = snapshot{at: r.Timestamp, info: info}
	}
	return nil
}

func (m *Memory) SelfCompatibility(_ context.Context, pkg checker.Package) ([]*checker.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*checker.Result
	for _, r := range m.self {
		if r.Packages[0].InstallName == pkg.InstallName {
			matched = append(matched, r)
		}
	}
	return Latest(matched), nil
}

func (m *Memory) PairCompatibility(_ context.Context, pkgs []checker.Package) ([]*checker.Result, error) {
	if len(pkgs) != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotPair, len(pkgs))
	}
	want := NewPair(pkgs[0].InstallName, pkgs[1].InstallName)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*checker.Result
	for _, r := range m.pairs {
		if pairOf(r) == want {
			matched = append(matched, r)
		}
	}
	return Latest(matched), nil
}

func (m *Memory) CompatibilityCombinations(_ context.Context, pkgs []checker.Package) (map[Pair][]*checker.Result, error) {
	wanted := combinations(pkgs)
	m.mu.RLock()
	defer m.mu.RUnlock()
	grouped := make(map[Pair][]*checker.Result)
	for _, r := range m.pairs {
		p := pairOf(r)
		if _, ok := wanted[p]; ok {
			grouped[p] = append(grouped[p], r)
		}
	}
	for p, rs := range grouped {
		grouped[p] = Latest(rs)
	}
	return grouped, nil
}

func (m *Memory) PairwiseForPackage(_ context.Context, pkg checker.Package) (map[Pair][]*checker.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grouped := make(map[Pair][]*checker.Result)
	for _, r := range m.pairs {
		p := pairOf(r)
		if p.Lower == pkg.InstallName || p.Higher == pkg.InstallName {
			grouped[p] = append(grouped[p], r)
		}
	}
	for p, rs := range grouped {
		grouped[p] = Latest(rs)
	}
	return grouped, nil
}

func (m *Memory) DependencyInfo(_ context.Context, installName string) (map[string]checker.VersionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.deps[installName]
	out := make(map[string]checker.VersionInfo, len(snap.info))
	for k, v := range snap.info {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Packages(_ context.Context) ([]checker.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var names []string
	for _, r := range m.self {
		n := r.Packages[0].InstallName
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return checker.NewPackages(names...), nil
}

func pairOf(r *checker.Result) Pair {
	return NewPair(r.Packages[0].InstallName, r.Packages[1].InstallName)
}
