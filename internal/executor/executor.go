// Package executor sends individual probe queries to the remote search
// service and measures the full round-trip latency.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/esprobe/esprobe/internal/query"

	apperrors "github.com/esprobe/esprobe/internal/pkg/errors"
)

// Config configures the executor.
type Config struct {
	// BaseURL is the base address of the search service, without a
	// trailing slash.
	BaseURL string

	// APIKey is attached as an Authorization header when set.
	APIKey string

	// Timeout bounds each search call, including connection setup.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts. Zero means the default.
	MaxIdleConns int

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection will remain idle before closing itself.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:9200",
		Timeout:         120 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Executor owns an explicit registry of pooled HTTP clients, one per
// distinct base endpoint, so repeated probes reuse connections instead of
// paying handshake cost on every call.
type Executor struct {
	cfg Config

	mu      sync.Mutex
	clients map[string]*http.Client
}

// New creates an executor for the configured endpoint.
func New(cfg Config) *Executor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = DefaultConfig().MaxIdleConns
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = DefaultConfig().IdleConnTimeout
	}

	return &Executor{
		cfg:     cfg,
		clients: make(map[string]*http.Client),
	}
}

// clientFor returns the pooled client for a base endpoint, creating it on
// first use.
func (e *Executor) clientFor(baseURL string) *http.Client {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[baseURL]; ok {
		return c
	}

	transport := &http.Transport{
		MaxIdleConns:        e.cfg.MaxIdleConns,
		MaxIdleConnsPerHost: e.cfg.MaxIdleConns,
		IdleConnTimeout:     e.cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	c := &http.Client{
		Timeout:   e.cfg.Timeout,
		Transport: transport,
	}
	e.clients[baseURL] = c
	return c
}

// Execute sends one query to the search endpoint and returns the measured
// wall-clock duration of the full round-trip. Any transport error, timeout,
// or non-success status is an ExecutionError. No retries: the next sweep is
// the retry.
func (e *Executor) Execute(ctx context.Context, spec query.Spec) (time.Duration, error) {
	target := fmt.Sprintf("%s/%s/_search", e.cfg.BaseURL, spec.Path)

	payload, err := json.Marshal(spec.Body)
	if err != nil {
		return 0, apperrors.ExecutionError("marshaling query body", err).
			WithDetail("query", spec.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, apperrors.ExecutionError("building request", err).
			WithDetail("query", spec.Name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+e.cfg.APIKey)
	}

	client := e.clientFor(e.cfg.BaseURL)

	// The measurement starts immediately before dispatch and includes
	// connection setup. time.Since reads the monotonic clock.
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), apperrors.ExecutionError("search request failed", err).
			WithDetail("query", spec.Name).
			WithDetail("endpoint", e.cfg.BaseURL)
	}

	// Do returns once the headers arrive. The probed latency is the full
	// round-trip, so the body is drained (and discarded: latency is the
	// only product) before the clock stops. Draining also lets the
	// connection be reused.
	_, copyErr := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	duration := time.Since(start)

	if copyErr != nil {
		return duration, apperrors.ExecutionError("reading search response", copyErr).
			WithDetail("query", spec.Name).
			WithDetail("endpoint", e.cfg.BaseURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return duration, apperrors.ExecutionError(
			fmt.Sprintf("search returned HTTP %d", resp.StatusCode), nil).
			WithDetail("query", spec.Name).
			WithDetail("endpoint", e.cfg.BaseURL)
	}

	return duration, nil
}

// BaseURL returns the configured base endpoint.
func (e *Executor) BaseURL() string {
	return e.cfg.BaseURL
}
