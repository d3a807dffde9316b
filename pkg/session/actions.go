package session

import (
	"context"
	"fmt"

	"github.com/vlsilab/chipdash/pkg/models"
)

// BulkResult reports the outcome of a best-effort batch operation.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// Delete removes one job upstream and drops it from the list only after
// the API confirmed the deletion.
func (s *Session) Delete(ctx context.Context, id string) error {
	job, ok := s.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown job id %q", id)
	}
	if err := s.client.Delete(ctx, job.Source, job.ID); err != nil {
		return err
	}
	s.remove(id)
	return nil
}

// DeleteSelected deletes every selected job, best effort: one item
// failing never aborts the batch. Succeeded ids leave both the list and
// the selection; failed ids stay put.
func (s *Session) DeleteSelected(ctx context.Context) BulkResult {
	var result BulkResult
	for _, id := range s.Selected() {
		job, ok := s.Lookup(id)
		if !ok {
			// Pruned by a concurrent merge; nothing left to delete.
			s.Deselect(id)
			continue
		}
		if err := s.client.Delete(ctx, job.Source, job.ID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", id, err))
			if s.logger != nil {
				s.logger.Error("bulk delete item failed",
					map[string]interface{}{"job_id": id, "error": err.Error()})
			}
			continue
		}
		result.Succeeded++
		s.remove(id)
	}
	return result
}

// Rerun requeues a test and re-aggregates the whole list on success.
func (s *Session) Rerun(ctx context.Context, id string) error {
	if err := s.client.Rerun(ctx, id); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// remove drops one id from the list and selection.
func (s *Session) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]models.JobRecord, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.ID != id {
			jobs = append(jobs, job)
		}
	}
	s.jobs = jobs
	delete(s.selected, id)
}
