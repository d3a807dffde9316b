package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vlsilab/chipdash/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)

	jobs := []models.JobRecord{
		{
			ID:             "l1",
			Name:           "analog sweep",
			Category:       "LDPC",
			SubsystemLabel: "ldpc (analog)",
			Status:         models.StatusCompleted,
			Source:         models.SourceLDPC,
			CreatedAt:      time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			AlgorithmType:  models.AlgorithmAnalog,
			Results:        []models.RunResult{{Success: true, ExecutionTime: 0.4, Iterations: 3}},
		},
		{
			ID:        "t1",
			Name:      "bringup",
			Category:  "DDR5",
			Status:    models.StatusRunning,
			Source:    models.SourceTests,
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	require.NoError(t, store.SaveSnapshot(jobs))

	loaded, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Newest first
	assert.Equal(t, "l1", loaded[0].ID)
	assert.Equal(t, "ldpc (analog)", loaded[0].SubsystemLabel)
	assert.Len(t, loaded[0].Results, 1)
	assert.Equal(t, models.StatusRunning, loaded[1].Status)
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	store := newTestStore(t)

	first := []models.JobRecord{{ID: "a"}, {ID: "b"}}
	require.NoError(t, store.SaveSnapshot(first))

	second := []models.JobRecord{{ID: "c"}}
	require.NoError(t, store.SaveSnapshot(second))

	loaded, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c", loaded[0].ID)
}

func TestDismissedAnnouncements(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.DismissAnnouncement("maint-2026-03"))
	require.NoError(t, store.DismissAnnouncement("maint-2026-03")) // idempotent
	require.NoError(t, store.DismissAnnouncement("outage-2026-02"))

	ids, err := store.DismissedAnnouncements()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "maint-2026-03")
	assert.Contains(t, ids, "outage-2026-02")
}

func TestSubmissionHistory(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordSubmission(SubmissionEntry{
			ID:          fmt.Sprintf("sub-%d", i),
			JobID:       fmt.Sprintf("job-%d", i),
			Source:      models.SourceTests,
			Action:      "rerun",
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.RecentSubmissions(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first
	assert.Equal(t, "job-4", entries[0].JobID)
	assert.Equal(t, "job-2", entries[2].JobID)
	assert.Equal(t, models.SourceTests, entries[0].Source)
}

func TestConcurrentSnapshotWrites(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			jobs := []models.JobRecord{{ID: fmt.Sprintf("job-%d", n)}}
			if err := store.SaveSnapshot(jobs); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent snapshot write failed: %v", err)
	}

	loaded, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Len(t, loaded, 1, "Last writer should own the snapshot")
}
