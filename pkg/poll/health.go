package poll

import (
	"context"
	"sync"
	"time"

	"github.com/vlsilab/chipdash/pkg/api"
)

// ProbeFunc checks upstream health.
type ProbeFunc func(ctx context.Context) (*api.HealthStatus, error)

// HealthChecker tracks upstream availability. Checks are last-request-
// wins: if a newer check starts before an older one resolves, the older
// result is discarded, so a slow stale response can never flap the status
// backwards.
type HealthChecker struct {
	probe ProbeFunc

	mu      sync.Mutex
	gen     uint64
	online  bool
	lastErr error
	checked time.Time
}

// NewHealthChecker creates a checker that starts offline until the first
// successful probe.
func NewHealthChecker(probe ProbeFunc) *HealthChecker {
	return &HealthChecker{probe: probe}
}

// Check runs one health probe and records the outcome unless a newer
// check superseded it while in flight.
func (h *HealthChecker) Check(ctx context.Context) {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.mu.Unlock()

	status, err := h.probe(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen {
		return // a newer check owns the status now
	}
	h.checked = time.Now()
	if err != nil {
		h.online = false
		h.lastErr = err
		return
	}
	h.online = status.Online()
	h.lastErr = nil
}

// Run probes on a fixed interval until ctx is canceled.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Online reports the last recorded availability.
func (h *HealthChecker) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

// LastError returns the error from the most recent failed probe, nil when
// healthy.
func (h *HealthChecker) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}
