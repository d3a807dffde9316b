package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vlsilab/chipdash/pkg/models"
)

func TestMemoryStoreImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore()
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	store := NewMemoryStore()

	jobs := []models.JobRecord{{ID: "a", Status: models.StatusRunning}}
	require.NoError(t, store.SaveSnapshot(jobs))

	// Mutating the caller's slice must not leak into the store
	jobs[0].Status = models.StatusFailed

	loaded, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, loaded[0].Status)
}

func TestMemoryStoreSubmissions(t *testing.T) {
	store := NewMemoryStore()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.RecordSubmission(SubmissionEntry{
			ID: id, JobID: id, Action: "delete", SubmittedAt: time.Now(),
		}))
	}

	entries, err := store.RecentSubmissions(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].JobID, "Newest entry first")
}
