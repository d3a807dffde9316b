// Package session owns the dashboard's client-side state: the merged job
// list, the selection set, filters and pagination. All transitions go
// through this controller so they can be tested without any rendering or
// network environment. The job list is treated as immutable: every update
// installs a replacement slice, which keeps reference equality meaningful
// for poll no-op detection.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/vlsilab/chipdash/pkg/aggregate"
	"github.com/vlsilab/chipdash/pkg/api"
	"github.com/vlsilab/chipdash/pkg/logging"
	"github.com/vlsilab/chipdash/pkg/models"
)

// Client is the slice of the proxy API the session drives.
type Client interface {
	FetchAll(ctx context.Context) (api.FetchResult, error)
	Delete(ctx context.Context, source models.Source, id string) error
	Rerun(ctx context.Context, id string) error
}

// Session is the single owner of dashboard state for one logical user
// session.
type Session struct {
	client Client
	logger *logging.Logger

	observer func(api.FetchResult)

	mu       sync.Mutex
	jobs     []models.JobRecord
	selected map[string]struct{}
	filter   aggregate.Filter
	page     int
	pageSize int
	offline  bool
}

// New creates an empty session backed by the given API client.
func New(client Client, logger *logging.Logger) *Session {
	return &Session{
		client:   client,
		logger:   logger,
		selected: make(map[string]struct{}),
		page:     1,
		pageSize: aggregate.DefaultPageSize,
	}
}

// SetFetchObserver registers a callback invoked with the outcome of every
// fetch cycle, successful or not. Used to feed the metrics collector.
func (s *Session) SetFetchObserver(fn func(api.FetchResult)) {
	s.observer = fn
}

// Refresh re-aggregates both sources. A single failed source degrades to
// the other's contents; both failing flips the session offline and clears
// the displayed list. Offline is a reportable state, not an error.
func (s *Session) Refresh(ctx context.Context) error {
	result, err := s.client.FetchAll(ctx)
	if s.observer != nil {
		s.observer(result)
	}
	if err != nil {
		if errors.Is(err, api.ErrAPIOffline) {
			if s.logger != nil {
				s.logger.Warn("all job sources unreachable, clearing list")
			}
			s.mu.Lock()
			s.offline = true
			s.installLocked(nil)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	if s.logger != nil {
		if result.GenericErr != nil {
			s.logger.Warn("tests source failed, degrading to LDPC jobs only",
				map[string]interface{}{"error": result.GenericErr.Error()})
		}
		if result.LDPCErr != nil {
			s.logger.Warn("ldpc source failed, degrading to tests only",
				map[string]interface{}{"error": result.LDPCErr.Error()})
		}
	}

	merged := aggregate.Aggregate(result.Generic, result.LDPC)

	s.mu.Lock()
	s.offline = false
	s.installLocked(merged)
	s.mu.Unlock()
	return nil
}

// installLocked replaces the list and prunes selection entries whose ids
// are no longer present, so no dangling selections survive a merge.
func (s *Session) installLocked(jobs []models.JobRecord) {
	s.jobs = jobs
	if len(s.selected) == 0 {
		return
	}
	present := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		present[job.ID] = struct{}{}
	}
	for id := range s.selected {
		if _, ok := present[id]; !ok {
			delete(s.selected, id)
		}
	}
}

// Jobs returns the current merged list. The slice is replaced wholesale on
// every update and must not be mutated by callers.
func (s *Session) Jobs() []models.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs
}

// ApplyPoll installs a poll-merged list. Passing back the same reference
// the poller was given is a no-op.
func (s *Session) ApplyPoll(merged []models.JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(merged) == len(s.jobs) && len(merged) > 0 && &merged[0] == &s.jobs[0] {
		return
	}
	s.installLocked(merged)
}

// Offline reports whether the last refresh found every source down.
func (s *Session) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// SetFilter replaces the filter and resets pagination to the first page.
func (s *Session) SetFilter(f aggregate.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	s.page = 1
}

// SetPage moves to a 1-based page.
func (s *Session) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	s.page = page
}

// SetPageSize overrides the fixed page length.
func (s *Session) SetPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size > 0 {
		s.pageSize = size
	}
}

// View returns the current page of the filtered list plus the total
// filtered count. Filtering and pagination never re-sort.
func (s *Session) View() ([]models.JobRecord, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.filter.Apply(s.jobs)
	return aggregate.Paginate(filtered, s.page, s.pageSize), len(filtered)
}

// Select marks a job id, reporting whether it exists in the current list.
func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ID == id {
			s.selected[id] = struct{}{}
			return true
		}
	}
	return false
}

// Deselect removes a job id from the selection.
func (s *Session) Deselect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selected, id)
}

// ClearSelection empties the selection set.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]struct{})
}

// Selected returns the selected ids in stable order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup finds a job by id in the current list.
func (s *Session) Lookup(id string) (models.JobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ID == id {
			return job, true
		}
	}
	return models.JobRecord{}, false
}
