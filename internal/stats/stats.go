// Package stats maintains running per-query latency statistics.
package stats

import (
	"sort"
	"sync"

	"github.com/esprobe/esprobe/internal/ledger"
)

type series struct {
	count int64
	sum   float64
}

// Aggregator keeps an unweighted full-history arithmetic mean per query
// name. No decay, no windowing: this is a monitoring signal, not an SLO
// calculation.
type Aggregator struct {
	mu     sync.RWMutex
	byName map[string]*series
}

// New creates an aggregator seeded from prior ledger rows, so a restart
// picks up exactly where the previous run's averages left off.
func New(seed []ledger.Result) *Aggregator {
	a := &Aggregator{
		byName: make(map[string]*series),
	}
	for _, r := range seed {
		a.Record(r.Name, r.Duration)
	}
	return a
}

// Record adds one observed duration (seconds) for the named query.
func (a *Aggregator) Record(name string, duration float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.byName[name]
	if !ok {
		s = &series{}
		a.byName[name] = s
	}
	s.count++
	s.sum += duration
}

// Average returns the arithmetic mean of all recorded durations for the
// named query, or 0 if none have been observed yet.
func (a *Aggregator) Average(name string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.byName[name]
	if !ok || s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Count returns the number of observations recorded for the named query.
func (a *Aggregator) Count(name string) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.byName[name]
	if !ok {
		return 0
	}
	return s.count
}

// Names returns all query names with at least one observation, sorted.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.byName))
	for name := range a.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
