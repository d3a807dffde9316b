package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vlsilab/chipdash/pkg/aggregate"
	"github.com/vlsilab/chipdash/pkg/api"
	"github.com/vlsilab/chipdash/pkg/models"
)

// fakeClient implements Client with canned source data and per-id
// failure injection.
type fakeClient struct {
	generic    []models.RawGeneric
	ldpc       []models.RawLDPC
	genericErr error
	ldpcErr    error

	deleteErrs map[string]error
	deleted    []string
	reruns     []string
	rerunErr   error
}

func (f *fakeClient) FetchAll(ctx context.Context) (api.FetchResult, error) {
	result := api.FetchResult{
		Generic:    f.generic,
		LDPC:       f.ldpc,
		GenericErr: f.genericErr,
		LDPCErr:    f.ldpcErr,
	}
	if result.GenericErr != nil {
		result.Generic = nil
	}
	if result.LDPCErr != nil {
		result.LDPC = nil
	}
	if result.Offline() {
		return result, api.ErrAPIOffline
	}
	return result, nil
}

func (f *fakeClient) Delete(ctx context.Context, source models.Source, id string) error {
	if err := f.deleteErrs[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClient) Rerun(ctx context.Context, id string) error {
	if f.rerunErr != nil {
		return f.rerunErr
	}
	f.reruns = append(f.reruns, id)
	return nil
}

func stamp(day int) string {
	return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func newFakeClient(n int) *fakeClient {
	f := &fakeClient{deleteErrs: map[string]error{}}
	for i := 0; i < n; i++ {
		f.generic = append(f.generic, models.RawGeneric{
			ID:        fmt.Sprintf("job-%d", i),
			Name:      fmt.Sprintf("test %d", i),
			Status:    "running",
			CreatedAt: stamp(i + 1),
		})
	}
	return f
}

func TestRefreshAggregatesBothSources(t *testing.T) {
	client := newFakeClient(2)
	client.ldpc = []models.RawLDPC{{ID: "l1", Status: "queued", CreatedAt: stamp(10)}}
	sess := New(client, nil)

	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	jobs := sess.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "l1" {
		t.Errorf("Newest job should be first, got %s", jobs[0].ID)
	}
	if sess.Offline() {
		t.Error("Session should not be offline after a successful refresh")
	}
}

func TestRefreshPartialDegradation(t *testing.T) {
	client := newFakeClient(2)
	client.ldpcErr = errors.New("ldpc source down")
	sess := New(client, nil)

	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("A single failed source should not error: %v", err)
	}
	if len(sess.Jobs()) != 2 {
		t.Errorf("Expected the surviving source's 2 jobs, got %d", len(sess.Jobs()))
	}
	if sess.Offline() {
		t.Error("One live source should keep the session online")
	}
}

func TestRefreshOfflineClearsList(t *testing.T) {
	client := newFakeClient(2)
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(sess.Jobs()) != 2 {
		t.Fatalf("Expected 2 jobs before outage, got %d", len(sess.Jobs()))
	}

	client.genericErr = errors.New("down")
	client.ldpcErr = errors.New("down")

	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Offline is a state, not an error: %v", err)
	}
	if !sess.Offline() {
		t.Error("Session should be offline when both sources fail")
	}
	if len(sess.Jobs()) != 0 {
		t.Errorf("Offline refresh should clear the list, got %d jobs", len(sess.Jobs()))
	}
}

func TestRefreshPrunesDanglingSelection(t *testing.T) {
	client := newFakeClient(3)
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if !sess.Select("job-0") || !sess.Select("job-2") {
		t.Fatal("Selecting existing jobs should succeed")
	}

	// job-2 disappears upstream
	client.generic = client.generic[:2]
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	selected := sess.Selected()
	if len(selected) != 1 || selected[0] != "job-0" {
		t.Errorf("Dangling selection should be pruned, got %v", selected)
	}
}

func TestSelectUnknownID(t *testing.T) {
	sess := New(newFakeClient(0), nil)
	if sess.Select("ghost") {
		t.Error("Selecting an unknown id should report false")
	}
}

func TestViewFiltersAndPaginates(t *testing.T) {
	client := newFakeClient(25)
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	page, total := sess.View()
	if total != 25 {
		t.Errorf("Expected 25 total, got %d", total)
	}
	if len(page) != aggregate.DefaultPageSize {
		t.Errorf("Expected one page of %d, got %d", aggregate.DefaultPageSize, len(page))
	}

	sess.SetPage(3)
	page, _ = sess.View()
	if len(page) != 5 {
		t.Errorf("Page 3 should hold the trailing 5 jobs, got %d", len(page))
	}

	// Setting a filter resets to page 1
	sess.SetFilter(aggregate.Filter{Search: "test 1"})
	page, total = sess.View()
	// "test 1" matches test 1 and test 10..19
	if total != 11 {
		t.Errorf("Expected 11 matches, got %d", total)
	}
	if len(page) != 10 {
		t.Errorf("Filter should reset to page 1 with 10 entries, got %d", len(page))
	}
}

func TestApplyPollSameReferenceIsNoOp(t *testing.T) {
	client := newFakeClient(2)
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	jobs := sess.Jobs()
	sess.ApplyPoll(jobs)

	after := sess.Jobs()
	if &after[0] != &jobs[0] {
		t.Error("Applying the same reference should leave the list untouched")
	}
}

func TestApplyPollInstallsNewList(t *testing.T) {
	client := newFakeClient(2)
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	merged := append([]models.JobRecord(nil), sess.Jobs()...)
	merged[0].Status = models.StatusCompleted
	sess.ApplyPoll(merged)

	if sess.Jobs()[0].Status != models.StatusCompleted {
		t.Errorf("New merged list should be installed, got %s", sess.Jobs()[0].Status)
	}
}

func TestDeleteRemovesAfterConfirmation(t *testing.T) {
	client := newFakeClient(2)
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if err := sess.Delete(context.Background(), "job-0"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(sess.Jobs()) != 1 {
		t.Errorf("Deleted job should leave the list, got %d jobs", len(sess.Jobs()))
	}
	if len(client.deleted) != 1 || client.deleted[0] != "job-0" {
		t.Errorf("Upstream delete not issued, got %v", client.deleted)
	}
}

func TestDeleteKeepsJobOnUpstreamFailure(t *testing.T) {
	client := newFakeClient(1)
	client.deleteErrs["job-0"] = errors.New("status 500")
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if err := sess.Delete(context.Background(), "job-0"); err == nil {
		t.Fatal("Expected delete error")
	}
	if len(sess.Jobs()) != 1 {
		t.Error("A failed delete must not remove the job locally")
	}
}

func TestDeleteSelectedBestEffort(t *testing.T) {
	client := newFakeClient(3)
	client.deleteErrs["job-1"] = errors.New("status 500")
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	for _, id := range []string{"job-0", "job-1", "job-2"} {
		if !sess.Select(id) {
			t.Fatalf("Failed to select %s", id)
		}
	}

	result := sess.DeleteSelected(context.Background())
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("Expected 2 succeeded / 1 failed, got %d/%d", result.Succeeded, result.Failed)
	}

	// The failed job stays listed and selected
	if len(sess.Jobs()) != 1 || sess.Jobs()[0].ID != "job-1" {
		t.Errorf("Only the failed job should remain, got %v", sess.Jobs())
	}
	selected := sess.Selected()
	if len(selected) != 1 || selected[0] != "job-1" {
		t.Errorf("Failed job should stay selected, got %v", selected)
	}
}

func TestRerunTriggersRefresh(t *testing.T) {
	client := newFakeClient(1)
	sess := New(client, nil)
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Upstream adds a new job that only a re-aggregation would pick up
	client.generic = append(client.generic, models.RawGeneric{ID: "job-new", Status: "queued", CreatedAt: stamp(20)})

	if err := sess.Rerun(context.Background(), "job-0"); err != nil {
		t.Fatalf("Rerun failed: %v", err)
	}
	if len(client.reruns) != 1 || client.reruns[0] != "job-0" {
		t.Errorf("Upstream rerun not issued, got %v", client.reruns)
	}
	if len(sess.Jobs()) != 2 {
		t.Errorf("Rerun should re-aggregate the list, got %d jobs", len(sess.Jobs()))
	}
}

func TestFetchObserverSeesEveryCycle(t *testing.T) {
	client := newFakeClient(1)
	sess := New(client, nil)

	var observed []api.FetchResult
	sess.SetFetchObserver(func(result api.FetchResult) {
		observed = append(observed, result)
	})

	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	client.genericErr = errors.New("down")
	client.ldpcErr = errors.New("down")
	if err := sess.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if len(observed) != 2 {
		t.Fatalf("Observer should run on every cycle, got %d", len(observed))
	}
	if observed[0].Offline() {
		t.Error("First cycle should not be offline")
	}
	if !observed[1].Offline() {
		t.Error("Second cycle should be offline")
	}
}
