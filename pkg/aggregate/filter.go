package aggregate

import (
	"strings"

	"github.com/vlsilab/chipdash/pkg/models"
)

// DefaultPageSize is the fixed page length used by the dashboard table.
const DefaultPageSize = 10

// Filter is the secondary-stage selection over an aggregated list. Zero
// values match everything.
type Filter struct {
	Category string
	Status   models.Status
	Search   string
}

// Apply returns the jobs matching the filter, preserving input order. The
// free-text search matches case-insensitively against name, category and
// status.
func (f Filter) Apply(jobs []models.JobRecord) []models.JobRecord {
	if f.Category == "" && f.Status == "" && f.Search == "" {
		return jobs
	}

	needle := strings.ToLower(f.Search)
	out := make([]models.JobRecord, 0, len(jobs))
	for _, job := range jobs {
		if f.Category != "" && !strings.EqualFold(job.Category, f.Category) {
			continue
		}
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		if needle != "" && !matchesSearch(job, needle) {
			continue
		}
		out = append(out, job)
	}
	return out
}

func matchesSearch(job models.JobRecord, needle string) bool {
	return strings.Contains(strings.ToLower(job.Name), needle) ||
		strings.Contains(strings.ToLower(job.Category), needle) ||
		strings.Contains(strings.ToLower(string(job.Status)), needle)
}

// Paginate slices one page out of the filtered list without re-sorting.
// Pages are 1-based; out-of-range pages yield an empty slice. A pageSize
// of 0 or less falls back to DefaultPageSize.
func Paginate(jobs []models.JobRecord, page, pageSize int) []models.JobRecord {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(jobs) {
		return []models.JobRecord{}
	}
	end := start + pageSize
	if end > len(jobs) {
		end = len(jobs)
	}
	return jobs[start:end]
}

// PageCount returns the number of pages the filtered list spans.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total == 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
