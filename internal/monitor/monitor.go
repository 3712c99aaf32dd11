// Package monitor watches the upstream node's reachability in the
// background and logs when it changes.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/firefly-engineering/algod-proxy/internal/health"
)

// UpstreamHealthPath is algod's unauthenticated liveness endpoint.
const UpstreamHealthPath = "/health"

// Monitor periodically probes the upstream node.
type Monitor struct {
	interval time.Duration
	target   string
	client   *http.Client
	logger   *slog.Logger

	mu   sync.Mutex
	last *health.CheckResult
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClient sets the HTTP client used for probes.
func WithClient(client *http.Client) Option {
	return func(m *Monitor) {
		m.client = client
	}
}

// WithLogger sets the logger for state changes.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// New creates a Monitor probing upstreamURL every interval.
func New(interval time.Duration, upstreamURL string, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		target:   strings.TrimRight(upstreamURL, "/") + UpstreamHealthPath,
		client:   &http.Client{Timeout: health.DefaultTimeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Target returns the probed URL.
func (m *Monitor) Target() string {
	return m.target
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Debug("starting upstream monitor", "interval", m.interval, "target", m.target)

	// Run an immediate check, then loop on interval.
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("upstream monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes the upstream once and logs if its status changed since the
// previous probe.
func (m *Monitor) Check(ctx context.Context) *health.CheckResult {
	result := probe(ctx, m.client, m.target)
	if ctx.Err() != nil {
		return result
	}

	m.mu.Lock()
	prev := m.last
	m.last = result
	m.mu.Unlock()

	switch {
	case result.Status == health.StatusHealthy && (prev == nil || prev.Status != health.StatusHealthy):
		m.logger.Info("upstream reachable", "target", m.target, "latency", health.FormatLatency(result.Latency))
	case result.Status != health.StatusHealthy && (prev == nil || prev.Status == health.StatusHealthy):
		m.logger.Warn("upstream unreachable", "target", m.target, "error", result.Err)
	}
	return result
}

// Status returns the last observed status, or "" before the first probe.
func (m *Monitor) Status() health.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return ""
	}
	return m.last.Status
}

// probe treats any 200 from the node as healthy; algod answers /health
// with an empty body.
func probe(ctx context.Context, client *http.Client, target string) *health.CheckResult {
	result := &health.CheckResult{Status: health.StatusUnhealthy}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.Err = err
		return result
	}
	resp, err := client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}
	resp.Body.Close()
	result.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		result.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return result
	}
	result.Status = health.StatusHealthy
	return result
}
