package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status represents the health status of a proxy instance
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"

	// DefaultTimeout bounds a single probe.
	DefaultTimeout = 5 * time.Second
)

// Response is the body served on /health.
type Response struct {
	OK bool `json:"ok"`
}

// Handler answers liveness probes. It never consults the upstream node and
// is not subject to the allowlist or rate limiting.
func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{OK: true})
}

// CheckResult contains the result of probing a running proxy
type CheckResult struct {
	Status     Status
	StatusCode int
	Latency    time.Duration
	Err        error
}

// Check probes url (normally http://127.0.0.1:<port>/health). A nil client
// uses a client with DefaultTimeout.
func Check(ctx context.Context, client *http.Client, url string) *CheckResult {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	result := &CheckResult{Status: StatusUnhealthy}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		result.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return result
	}

	var body Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		result.Err = fmt.Errorf("invalid health response: %w", err)
		return result
	}
	if !body.OK {
		result.Err = fmt.Errorf("health response reported ok=false")
		return result
	}

	result.Status = StatusHealthy
	return result
}

// FormatLatency renders a probe latency for CLI output.
func FormatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
