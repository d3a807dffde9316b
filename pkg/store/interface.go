// Package store persists the small amount of local dashboard state that
// survives restarts: the last merged job snapshot, dismissed announcement
// ids, and the submission history. The authoritative job data always
// lives upstream; this cache only lets the dashboard render something
// useful before the first fetch completes.
package store

import (
	"time"

	"github.com/vlsilab/chipdash/pkg/models"
)

// SubmissionEntry records one action taken through the dashboard.
type SubmissionEntry struct {
	ID          string        `json:"id"`
	JobID       string        `json:"job_id"`
	Source      models.Source `json:"source"`
	Action      string        `json:"action"` // "rerun", "delete", "export"
	SubmittedAt time.Time     `json:"submitted_at"`
}

// Store is the local persistence interface.
type Store interface {
	// SaveSnapshot replaces the cached job list wholesale.
	SaveSnapshot(jobs []models.JobRecord) error
	// LoadSnapshot returns the cached list, newest first.
	LoadSnapshot() ([]models.JobRecord, error)

	DismissAnnouncement(id string) error
	DismissedAnnouncements() ([]string, error)

	RecordSubmission(entry SubmissionEntry) error
	RecentSubmissions(limit int) ([]SubmissionEntry, error)

	Close() error
}
