// Package poll keeps the in-memory job list fresh. Only jobs that are
// still running are re-fetched; terminal and queued jobs are left alone.
package poll

import (
	"context"
	"time"

	"github.com/vlsilab/chipdash/pkg/aggregate"
	"github.com/vlsilab/chipdash/pkg/logging"
	"github.com/vlsilab/chipdash/pkg/models"
)

// DefaultInterval is the poll cadence while at least one job is running.
const DefaultInterval = 5 * time.Second

// FetchFunc retrieves the latest snapshot of one job.
type FetchFunc func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error)

// Merge re-fetches every running job in current and folds status changes
// back into the list. When nothing changed the exact input slice is
// returned, so callers can use reference equality to skip redundant
// updates. When something changed a fresh slice is returned, re-sorted
// newest first to absorb server-corrected timestamps. Fetch failures leave
// the cached record untouched.
func Merge(ctx context.Context, current []models.JobRecord, fetch FetchFunc) []models.JobRecord {
	updates := make(map[string]*models.JobRecord)
	for _, job := range current {
		if job.Status != models.StatusRunning {
			continue
		}
		snapshot, err := fetch(ctx, job.Source, job.ID)
		if err != nil || snapshot == nil {
			continue
		}
		if snapshot.Status != job.Status {
			updates[job.ID] = snapshot
		}
	}

	if len(updates) == 0 {
		return current
	}

	merged := make([]models.JobRecord, len(current))
	copy(merged, current)
	for i := range merged {
		snapshot, ok := updates[merged[i].ID]
		if !ok {
			continue
		}
		merged[i].Status = snapshot.Status
		if !snapshot.CreatedAt.IsZero() {
			merged[i].CreatedAt = snapshot.CreatedAt
		}
		if len(snapshot.Results) > 0 {
			merged[i].Results = snapshot.Results
		}
	}
	aggregate.SortByCreated(merged)
	return merged
}

// Poller periodically merges job status updates while any job is running.
// With no running jobs it parks without a timer until Kick or shutdown.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc
	source   func() []models.JobRecord
	apply    func([]models.JobRecord)
	logger   *logging.Logger
	kick     chan struct{}
}

// NewPoller wires a poller to a list source and sink. source returns the
// current list; apply stores a merged replacement.
func NewPoller(interval time.Duration, fetch FetchFunc, source func() []models.JobRecord, apply func([]models.JobRecord), logger *logging.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		interval: interval,
		fetch:    fetch,
		source:   source,
		apply:    apply,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Kick wakes an idle poller, typically after a merge introduced new
// running jobs.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls until ctx is canceled. The presence of a running job is the
// sole gating condition and is re-evaluated every cycle.
func (p *Poller) Run(ctx context.Context) {
	for {
		if !anyRunning(p.source()) {
			select {
			case <-ctx.Done():
				return
			case <-p.kick:
				continue
			}
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		current := p.source()
		merged := Merge(ctx, current, p.fetch)
		if len(merged) > 0 && len(current) > 0 && &merged[0] == &current[0] {
			continue
		}
		if p.logger != nil {
			p.logger.Debug("poll cycle merged status updates")
		}
		p.apply(merged)
	}
}

func anyRunning(jobs []models.JobRecord) bool {
	for _, job := range jobs {
		if job.Status == models.StatusRunning {
			return true
		}
	}
	return false
}
