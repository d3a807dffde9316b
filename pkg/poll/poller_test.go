package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vlsilab/chipdash/pkg/models"
)

func fixedTime(day int) time.Time {
	return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC)
}

func TestMergeNoChangesReturnsSameSlice(t *testing.T) {
	current := []models.JobRecord{
		{ID: "a", Status: models.StatusRunning, Source: models.SourceTests, CreatedAt: fixedTime(2)},
		{ID: "b", Status: models.StatusCompleted, Source: models.SourceTests, CreatedAt: fixedTime(1)},
	}

	fetch := func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
		// Still running, nothing changed
		return &models.JobRecord{ID: id, Status: models.StatusRunning}, nil
	}

	merged := Merge(context.Background(), current, fetch)
	if &merged[0] != &current[0] {
		t.Error("Unchanged merge should return the exact input slice")
	}
}

func TestMergeOnlyFetchesRunningJobs(t *testing.T) {
	current := []models.JobRecord{
		{ID: "run", Status: models.StatusRunning, CreatedAt: fixedTime(3)},
		{ID: "done", Status: models.StatusCompleted, CreatedAt: fixedTime(2)},
		{ID: "wait", Status: models.StatusQueued, CreatedAt: fixedTime(1)},
	}

	var fetched []string
	fetch := func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
		fetched = append(fetched, id)
		return &models.JobRecord{ID: id, Status: models.StatusRunning}, nil
	}

	Merge(context.Background(), current, fetch)
	if len(fetched) != 1 || fetched[0] != "run" {
		t.Errorf("Only running jobs should be re-fetched, got %v", fetched)
	}
}

func TestMergeAppliesStatusChange(t *testing.T) {
	current := []models.JobRecord{
		{ID: "a", Status: models.StatusRunning, CreatedAt: fixedTime(2)},
		{ID: "b", Status: models.StatusCompleted, CreatedAt: fixedTime(1)},
	}

	snapshot := &models.JobRecord{
		ID:        "a",
		Status:    models.StatusCompleted,
		CreatedAt: fixedTime(2),
		Results:   []models.RunResult{{Success: true, ExecutionTime: 1}},
	}
	fetch := func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
		return snapshot, nil
	}

	merged := Merge(context.Background(), current, fetch)
	if len(merged) > 0 && len(current) > 0 && &merged[0] == &current[0] {
		t.Fatal("Changed merge should return a fresh slice")
	}
	if merged[0].Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", merged[0].Status)
	}
	if len(merged[0].Results) != 1 {
		t.Errorf("Fresh results should be carried over, got %d", len(merged[0].Results))
	}

	// The input slice is untouched
	if current[0].Status != models.StatusRunning {
		t.Errorf("Input slice was mutated: %s", current[0].Status)
	}
}

func TestMergeResortsOnCorrectedTimestamp(t *testing.T) {
	current := []models.JobRecord{
		{ID: "a", Status: models.StatusRunning, CreatedAt: fixedTime(2)},
		{ID: "b", Status: models.StatusCompleted, CreatedAt: fixedTime(1)},
	}

	// Server corrects a's timestamp backwards past b's
	fetch := func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
		return &models.JobRecord{ID: "a", Status: models.StatusFailed, CreatedAt: fixedTime(0).AddDate(0, 0, -1)}, nil
	}

	merged := Merge(context.Background(), current, fetch)
	if merged[0].ID != "b" || merged[1].ID != "a" {
		t.Errorf("Merged list should be re-sorted newest first, got %s then %s", merged[0].ID, merged[1].ID)
	}
}

func TestMergeToleratesFetchFailure(t *testing.T) {
	current := []models.JobRecord{
		{ID: "a", Status: models.StatusRunning, CreatedAt: fixedTime(2)},
	}

	fetch := func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
		return nil, errors.New("proxy hiccup")
	}

	merged := Merge(context.Background(), current, fetch)
	if &merged[0] != &current[0] {
		t.Error("A failed fetch should leave the cached list untouched")
	}
	if merged[0].Status != models.StatusRunning {
		t.Errorf("Cached status should survive a fetch failure, got %s", merged[0].Status)
	}
}

func TestPollerParksWithoutRunningJobs(t *testing.T) {
	var fetchCalls int
	fetch := func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
		fetchCalls++
		return nil, nil
	}

	jobs := []models.JobRecord{{ID: "done", Status: models.StatusCompleted}}
	poller := NewPoller(10*time.Millisecond, fetch,
		func() []models.JobRecord { return jobs },
		func([]models.JobRecord) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(stopped)
	}()

	// With no running jobs the poller must not fetch at all
	time.Sleep(50 * time.Millisecond)
	if fetchCalls != 0 {
		t.Errorf("Idle poller should not fetch, got %d calls", fetchCalls)
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Poller did not stop on context cancellation")
	}
}

func TestPollerKickResumesPolling(t *testing.T) {
	fetched := make(chan string, 16)
	fetch := func(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
		fetched <- id
		return &models.JobRecord{ID: id, Status: models.StatusRunning}, nil
	}

	var mu sync.Mutex
	var jobs []models.JobRecord
	poller := NewPoller(5*time.Millisecond, fetch,
		func() []models.JobRecord {
			mu.Lock()
			defer mu.Unlock()
			return jobs
		},
		func([]models.JobRecord) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	// Parked: no jobs at all
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	jobs = []models.JobRecord{{ID: "new", Status: models.StatusRunning}}
	mu.Unlock()
	poller.Kick()

	select {
	case id := <-fetched:
		if id != "new" {
			t.Errorf("Expected fetch of job new, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Kick did not wake the poller")
	}
}
