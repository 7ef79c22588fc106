package checker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/purelind/pycompat-check/pkg/logger"
)

// Checker answers whether packages install and check cleanly under one
// python major version. Implementations are safe for concurrent use.
type Checker interface {
	Check(ctx context.Context, pythonVersion int, packages []string) (*Result, error)
}

// DependencyResolver turns a freeze listing into per-dependency version
// records.
type DependencyResolver interface {
	Resolve(ctx context.Context, requirements string) (map[string]VersionInfo, error)
}

// Local runs probes on this host, one at a time per python version.
type Local struct {
	probes   map[int]*Pip
	locks    map[int]*sync.Mutex
	resolver DependencyResolver
	log      *zap.SugaredLogger
}

// NewLocal returns a Local checker. resolver may be nil, in which case
// results carry no dependency info.
func NewLocal(probes map[int]*Pip, resolver DependencyResolver) *Local {
	locks := make(map[int]*sync.Mutex, len(probes))
	for v := range probes {
		locks[v] = &sync.Mutex{}
	}
	return &Local{
		probes:   probes,
		locks:    locks,
		resolver: resolver,
		log:      logger.Named("checker"),
	}
}

// Supports reports whether a probe is configured for the python version.
func (l *Local) Supports(pythonVersion int) bool {
	_, ok := l.probes[pythonVersion]
	return ok
}

func (l *Local) Check(ctx context.Context, pythonVersion int, packages []string) (*Result, error) {
	probe, ok := l.probes[pythonVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPython, pythonVersion)
	}

	mu := l.locks[pythonVersion]
	mu.Lock()
	res, err := probe.Check(ctx, packages)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := NewResult(NewPackages(packages...), pythonVersion, res.Status, res.Details)
	if len(packages) == 1 && res.Requirements != "" && l.resolver != nil {
		info, err := l.resolver.Resolve(ctx, res.Requirements)
		if err != nil {
			l.log.Warnw("failed to resolve dependency info", "package", packages[0], "error", err)
		} else {
			result.DependencyInfo = info
		}
	}
	l.log.Debugw("check finished", "packages", packages, "python", pythonVersion, "status", result.Status)
	return result, nil
}
