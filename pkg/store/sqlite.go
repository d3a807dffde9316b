package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vlsilab/chipdash/pkg/models"
)

// SQLiteStore is the file-backed local cache.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the cache database. WAL plus a busy
// timeout keeps the CLI and a background watch daemon from tripping over
// each other.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY between concurrent commands.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_snapshot (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at DATETIME,
		record TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dismissed_announcements (
		id TEXT PRIMARY KEY,
		dismissed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		source TEXT NOT NULL,
		action TEXT NOT NULL,
		submitted_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshot_created ON job_snapshot(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_submissions_time ON submissions(submitted_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSnapshot replaces the cached job list in one transaction.
func (s *SQLiteStore) SaveSnapshot(jobs []models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM job_snapshot"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO job_snapshot (id, status, created_at, record) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, job := range jobs {
		record, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
		}
		if _, err := stmt.Exec(job.ID, string(job.Status), job.CreatedAt, string(record)); err != nil {
			return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns the cached job list, newest first.
func (s *SQLiteStore) LoadSnapshot() ([]models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT record FROM job_snapshot ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var jobs []models.JobRecord
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		var job models.JobRecord
		if err := json.Unmarshal([]byte(record), &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DismissAnnouncement marks an announcement id as dismissed.
func (s *SQLiteStore) DismissAnnouncement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO dismissed_announcements (id, dismissed_at) VALUES (?, ?)",
		id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to dismiss announcement: %w", err)
	}
	return nil
}

// DismissedAnnouncements returns every dismissed announcement id.
func (s *SQLiteStore) DismissedAnnouncements() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT id FROM dismissed_announcements ORDER BY dismissed_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan announcement row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordSubmission appends one history entry.
func (s *SQLiteStore) RecordSubmission(entry SubmissionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO submissions (id, job_id, source, action, submitted_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.JobID, string(entry.Source), entry.Action, entry.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// RecentSubmissions returns up to limit entries, newest first.
func (s *SQLiteStore) RecentSubmissions(limit int) ([]SubmissionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		"SELECT id, job_id, source, action, submitted_at FROM submissions ORDER BY submitted_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var entries []SubmissionEntry
	for rows.Next() {
		var entry SubmissionEntry
		var source string
		if err := rows.Scan(&entry.ID, &entry.JobID, &source, &entry.Action, &entry.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		entry.Source = models.Source(source)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
