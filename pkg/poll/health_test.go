package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/vlsilab/chipdash/pkg/api"
)

func TestHealthCheckerStartsOffline(t *testing.T) {
	checker := NewHealthChecker(func(ctx context.Context) (*api.HealthStatus, error) {
		return &api.HealthStatus{APIStatus: "ok"}, nil
	})
	if checker.Online() {
		t.Error("Checker should start offline before the first probe")
	}
}

func TestHealthCheckerRecordsOutcome(t *testing.T) {
	probeErr := errors.New("connection refused")
	healthy := true
	checker := NewHealthChecker(func(ctx context.Context) (*api.HealthStatus, error) {
		if healthy {
			return &api.HealthStatus{APIStatus: "ok"}, nil
		}
		return nil, probeErr
	})

	checker.Check(context.Background())
	if !checker.Online() {
		t.Error("Expected online after healthy probe")
	}
	if checker.LastError() != nil {
		t.Errorf("Expected no error, got %v", checker.LastError())
	}

	healthy = false
	checker.Check(context.Background())
	if checker.Online() {
		t.Error("Expected offline after failed probe")
	}
	if !errors.Is(checker.LastError(), probeErr) {
		t.Errorf("Expected probe error, got %v", checker.LastError())
	}
}

func TestHealthCheckerDegradedStatus(t *testing.T) {
	checker := NewHealthChecker(func(ctx context.Context) (*api.HealthStatus, error) {
		return &api.HealthStatus{APIStatus: "degraded"}, nil
	})
	checker.Check(context.Background())
	if checker.Online() {
		t.Error("A non-ok api_status should count as offline")
	}
}

func TestHealthCheckerLastRequestWins(t *testing.T) {
	// The first probe stalls; a second probe completes while the first is
	// in flight. When the stale first result finally lands it must not
	// overwrite the newer one.
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	checker := NewHealthChecker(func(ctx context.Context) (*api.HealthStatus, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return nil, errors.New("stale failure")
		}
		return &api.HealthStatus{APIStatus: "ok"}, nil
	})

	firstDone := make(chan struct{})
	go func() {
		checker.Check(context.Background())
		close(firstDone)
	}()

	// Wait for the first probe to be in flight
	<-started

	checker.Check(context.Background())
	if !checker.Online() {
		t.Fatal("Second check should have recorded online")
	}

	close(release)
	<-firstDone

	if !checker.Online() {
		t.Error("Stale first result overwrote the newer online status")
	}
	if checker.LastError() != nil {
		t.Errorf("Stale error should have been discarded, got %v", checker.LastError())
	}
}
