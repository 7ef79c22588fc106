// Package orchestrator runs self and pairwise compatibility checks for
// the tracked packages and stores the results.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/pkg/logger"
)

// Saver is the part of the result store the orchestrator writes to.
type Saver interface {
	Save(ctx context.Context, results []*checker.Result) error
}

// Unit is one check: one or two packages under one python version.
type Unit struct {
	Packages      []string `json:"packages"`
	PythonVersion int      `json:"python_version"`
}

type Failure struct {
	Unit  Unit   `json:"unit"`
	Error string `json:"error"`
}

// Summary describes a finished run.
type Summary struct {
	RunID    uuid.UUID              `json:"run_id"`
	Planned  int                    `json:"planned"`
	Saved    int                    `json:"saved"`
	Statuses map[checker.Status]int `json:"statuses"`
	Failures []Failure              `json:"failures,omitempty"`
	Started  time.Time              `json:"started"`
	Finished time.Time              `json:"finished"`
}

type Orchestrator struct {
	checker    checker.Checker
	store      Saver
	whitelist  *config.Whitelist
	workers    int
	attempts   uint
	maxElapsed time.Duration
	progress   int
	batchSize  int
	newBackOff func() backoff.BackOff
	log        *zap.SugaredLogger
}

type Option func(*Orchestrator)

// WithWorkers bounds how many checks run at once.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithAttempts bounds how often one unit is tried.
func WithAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.attempts = uint(n)
		}
	}
}

// WithProgressEvery sets how many completions pass between progress logs.
func WithProgressEvery(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.progress = n
		}
	}
}

// WithBatchSize sets how many results are saved per store write.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithBackOff replaces the retry policy between attempts.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(o *Orchestrator) { o.newBackOff = f }
}

func New(c checker.Checker, s Saver, w *config.Whitelist, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		checker:    c,
		store:      s,
		whitelist:  w,
		workers:    20,
		attempts:   5,
		maxElapsed: time.Hour,
		progress:   50,
		batchSize:  50,
		newBackOff: jitter,
		log:        logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// jitter waits between one and two seconds before every retry.
func jitter() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1500 * time.Millisecond
	b.RandomizationFactor = 1.0 / 3
	b.Multiplier = 1
	b.MaxInterval = 2 * time.Second
	return b
}

// Run checks every package alone and every pair of packages under each
// python version.
func (o *Orchestrator) Run(ctx context.Context, packages []string, versions []int) (*Summary, error) {
	return o.Execute(ctx, o.Plan(packages, versions))
}

// Execute runs units on the worker pool and saves results as they
// arrive. A unit that keeps failing is recorded in the summary and does
// not stop the others. The returned error reports store failures or
// cancellation.
func (o *Orchestrator) Execute(ctx context.Context, units []Unit) (*Summary, error) {
	sum := &Summary{
		RunID:    uuid.New(),
		Planned:  len(units),
		Statuses: make(map[checker.Status]int),
		Started:  time.Now().UTC(),
	}
	log := o.log.With("run", sum.RunID.String())
	log.Infow("starting compatibility checks", "units", len(units), "workers", o.workers)

	results := make(chan *checker.Result)
	var saveErr error
	written := make(chan struct{})
	go func() {
		defer close(written)
		saveErr = o.write(context.WithoutCancel(ctx), results, sum)
	}()

	var (
		mu        sync.Mutex
		completed atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(o.workers)
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := o.checkUnit(ctx, u)
			if n := completed.Add(1); n%int64(o.progress) == 0 || int(n) == len(units) {
				log.Infow("progress", "completed", n, "total", len(units))
			}
			if err != nil {
				unitFailures.Inc()
				log.Errorw("check failed", "packages", u.Packages, "python", u.PythonVersion, "error", err)
				mu.Lock()
				sum.Failures = append(sum.Failures, Failure{Unit: u, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			checksTotal.WithLabelValues(string(res.Status)).Inc()
			results <- res
			return nil
		})
	}
	g.Wait()
	close(results)
	<-written

	sum.Finished = time.Now().UTC()
	runDuration.Observe(sum.Finished.Sub(sum.Started).Seconds())
	log.Infow("compatibility checks finished",
		"saved", sum.Saved, "failed", len(sum.Failures), "elapsed", sum.Finished.Sub(sum.Started))

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, saveErr
}

// write saves results in batches until in is closed.
func (o *Orchestrator) write(ctx context.Context, in <-chan *checker.Result, sum *Summary) error {
	var errs []error
	batch := make([]*checker.Result, 0, o.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := o.store.Save(ctx, batch); err != nil {
			o.log.Errorw("failed to save results", "count", len(batch), "error", err)
			errs = append(errs, err)
		} else {
			sum.Saved += len(batch)
		}
		batch = make([]*checker.Result, 0, o.batchSize)
	}
	for r := range in {
		sum.Statuses[r.Status]++
		batch = append(batch, r)
		if len(batch) >= o.batchSize {
			flush()
		}
	}
	flush()
	return errors.Join(errs...)
}

func (o *Orchestrator) checkUnit(ctx context.Context, u Unit) (*checker.Result, error) {
	return backoff.Retry(ctx, func() (*checker.Result, error) {
		res, err := o.checker.Check(ctx, u.PythonVersion, u.Packages)
		if err != nil {
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return res, nil
	},
		backoff.WithBackOff(o.newBackOff()),
		backoff.WithMaxTries(o.attempts),
		backoff.WithMaxElapsedTime(o.maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.log.Warnw("retrying check", "packages", u.Packages, "python", u.PythonVersion, "in", next, "error", err)
		}),
	)
}

// retryable reports whether another attempt could succeed. Contract
// violations and client errors will not.
func retryable(err error) bool {
	if errors.Is(err, checker.ErrInvalidPackageCount) ||
		errors.Is(err, checker.ErrUnsupportedPython) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *checker.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}
