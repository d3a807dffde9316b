package store

import (
	"sort"
	"sync"

	"github.com/vlsilab/chipdash/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and by commands that
// run without a cache file.
type MemoryStore struct {
	mu          sync.Mutex
	jobs        []models.JobRecord
	dismissed   map[string]struct{}
	submissions []SubmissionEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dismissed: make(map[string]struct{})}
}

func (s *MemoryStore) SaveSnapshot(jobs []models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append([]models.JobRecord(nil), jobs...)
	return nil
}

func (s *MemoryStore) LoadSnapshot() ([]models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.JobRecord(nil), s.jobs...), nil
}

func (s *MemoryStore) DismissAnnouncement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed[id] = struct{}{}
	return nil
}

func (s *MemoryStore) DismissedAnnouncements() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.dismissed))
	for id := range s.dismissed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) RecordSubmission(entry SubmissionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, entry)
	return nil
}

func (s *MemoryStore) RecentSubmissions(limit int) ([]SubmissionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.submissions) {
		limit = len(s.submissions)
	}
	out := make([]SubmissionEntry, 0, limit)
	for i := len(s.submissions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.submissions[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
