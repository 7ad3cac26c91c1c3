// Package prober drives the probe-and-record loop: it sweeps the query
// list in order, records successful timings to the ledger and the running
// stats, and paces itself between probes.
package prober

import (
	"context"
	"fmt"
	"time"

	"github.com/esprobe/esprobe/internal/ledger"
	"github.com/esprobe/esprobe/internal/query"
	"github.com/esprobe/esprobe/internal/stats"

	"github.com/esprobe/esprobe/internal/pkg/logger"
)

// Executor sends one query and returns the measured round-trip duration.
type Executor interface {
	Execute(ctx context.Context, spec query.Spec) (time.Duration, error)
}

// Ledger appends one durable result row.
type Ledger interface {
	Append(r ledger.Result) error
}

// Mirror optionally publishes observations for external dashboards.
type Mirror interface {
	SaveObservation(ctx context.Context, name string, obs stats.Observation) error
}

// Config configures the loop.
type Config struct {
	// Interval is the unconditional pacing sleep after every probe,
	// success or failure, including the last probe of a sweep.
	Interval time.Duration

	// TestDuration bounds the total run, checked once per sweep at sweep
	// start against a monotonic clock captured at loop start. Zero means
	// run indefinitely.
	TestDuration time.Duration
}

// Prober orchestrates the loop.
type Prober struct {
	cfg    Config
	specs  []query.Spec
	exec   Executor
	ledger Ledger
	stats  *stats.Aggregator
	mirror Mirror // nil when disabled
	log    *logger.Logger
}

// New creates a prober. mirror may be nil.
func New(cfg Config, specs []query.Spec, exec Executor, led Ledger, agg *stats.Aggregator, mirror Mirror, log *logger.Logger) *Prober {
	if log == nil {
		log = logger.Default()
	}
	return &Prober{
		cfg:    cfg,
		specs:  specs,
		exec:   exec,
		ledger: led,
		stats:  agg,
		mirror: mirror,
		log:    log,
	}
}

// Run executes sweeps until the configured test duration elapses or ctx is
// cancelled. A failed query never aborts the sweep; a failed ledger append
// does, since silently losing a recorded observation would break the
// ledger's durability contract.
func (p *Prober) Run(ctx context.Context) error {
	start := time.Now()

	p.log.Info("probe loop starting",
		"queries", len(p.specs),
		"interval", p.cfg.Interval.String(),
		"test_duration", p.cfg.TestDuration.String(),
	)

	completed := 0
	for {
		if ctx.Err() != nil {
			p.log.Info("probe loop stopped", "reason", "cancelled", "sweeps", completed)
			return nil
		}
		if p.cfg.TestDuration > 0 && time.Since(start) >= p.cfg.TestDuration {
			p.log.Info("probe loop stopped", "reason", "test duration elapsed", "sweeps", completed)
			return nil
		}

		finished, err := p.runSweep(ctx, completed+1)
		if err != nil {
			return err
		}
		if finished {
			completed++
		}
	}
}

// runSweep probes every query once, in list order. finished reports whether
// every query was probed; a sweep interrupted mid-probe is not counted as
// completed, while one cancelled during its final pacing sleep is.
func (p *Prober) runSweep(ctx context.Context, sweep int) (bool, error) {
	for i, spec := range p.specs {
		p.log.Info("executing query", "query", spec.Name, "sweep", sweep)

		elapsed, err := p.exec.Execute(ctx, spec)
		switch {
		case ctx.Err() != nil:
			// Shutdown observed at a natural resumption point.
			return false, nil
		case err != nil:
			// Isolated to this iteration: no ledger row, no stats
			// update, and the sweep continues.
			p.log.WithQuery(spec.Name).WithError(err).Warn("query failed")
		default:
			if err := p.recordSuccess(ctx, spec.Name, elapsed); err != nil {
				return false, err
			}
		}

		p.log.Debug("sleeping", "seconds", p.cfg.Interval.Seconds())
		select {
		case <-ctx.Done():
			return i == len(p.specs)-1, nil
		case <-time.After(p.cfg.Interval):
		}
	}
	return true, nil
}

func (p *Prober) recordSuccess(ctx context.Context, name string, elapsed time.Duration) error {
	seconds := elapsed.Seconds()
	result := ledger.Result{
		Timestamp: time.Now().UTC(),
		Name:      name,
		Duration:  seconds,
	}

	if err := p.ledger.Append(result); err != nil {
		return fmt.Errorf("recording result for query %q: %w", name, err)
	}

	p.stats.Record(name, seconds)

	if p.mirror != nil {
		obs := stats.Observation{Timestamp: result.Timestamp, Duration: seconds}
		if err := p.mirror.SaveObservation(ctx, name, obs); err != nil {
			// The ledger is the source of truth; the mirror is best effort.
			p.log.WithQuery(name).WithError(err).Warn("stats mirror update failed")
		}
	}

	p.log.Info("query average time",
		"query", name,
		"seconds", seconds,
		"average_seconds", p.stats.Average(name),
	)
	return nil
}
