// Package aggregate merges the two upstream job collections (generic tests
// and LDPC jobs) into one normalized, newest-first list. Aggregation never
// fails: a source that could not be fetched is represented by an empty
// input slice and the merge degrades to the other source's contents.
package aggregate

import (
	"sort"
	"time"

	"github.com/vlsilab/chipdash/pkg/models"
)

// DefaultCategory is assumed for generic tests that carry no chip type.
const DefaultCategory = "LDPC"

// Timestamp layouts accepted from the upstream APIs, tried in order.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Aggregate normalizes both source arrays and returns their concatenation
// sorted descending by creation time. Entries with unparsable timestamps
// sort as oldest. Neither source's entries are ever dropped.
func Aggregate(generic []models.RawGeneric, ldpc []models.RawLDPC) []models.JobRecord {
	merged := make([]models.JobRecord, 0, len(generic)+len(ldpc))
	for _, raw := range generic {
		merged = append(merged, NormalizeGeneric(raw))
	}
	for _, raw := range ldpc {
		merged = append(merged, NormalizeLDPC(raw))
	}
	SortByCreated(merged)
	return merged
}

// NormalizeGeneric maps one raw /tests entry onto the common record shape.
// Category falls back to DefaultCategory, a missing status means the test
// already completed, and the creation time is resolved with the fixed
// precedence createdAt > created_at > created > now.
func NormalizeGeneric(raw models.RawGeneric) models.JobRecord {
	category := raw.ChipType
	if category == "" {
		category = raw.ChipTypeAlt
	}
	if category == "" {
		category = DefaultCategory
	}

	status := models.StatusCompleted
	if raw.Status != "" {
		status = models.NormalizeStatus(raw.Status)
	}

	payload := map[string]interface{}{}
	for k, v := range raw.Parameters {
		payload[k] = v
	}

	return models.JobRecord{
		ID:             raw.ID,
		Name:           raw.Name,
		Category:       category,
		SubsystemLabel: models.SubsystemLabel(category, raw.AlgorithmType),
		Status:         status,
		Source:         models.SourceTests,
		CreatedAt:      parseCreatedAt(raw.CreatedAt, raw.CreatedSnake, raw.Created),
		AlgorithmType:  raw.AlgorithmType,
		Payload:        payload,
		Results:        raw.Results,
	}
}

// NormalizeLDPC maps one raw /ldpc/jobs entry onto the common record
// shape. Category is always LDPC and the subsystem label comes from the
// hardware algorithm variant.
func NormalizeLDPC(raw models.RawLDPC) models.JobRecord {
	payload := map[string]interface{}{
		"algorithm_type": raw.AlgorithmType,
	}
	if raw.NoiseLevel != 0 {
		payload["noise_level"] = raw.NoiseLevel
	}
	if raw.Message != "" {
		payload["message"] = raw.Message
	}

	return models.JobRecord{
		ID:             raw.ID,
		Name:           raw.Name,
		Category:       DefaultCategory,
		SubsystemLabel: models.LDPCSubsystemLabel(raw.AlgorithmType),
		Status:         models.NormalizeStatus(raw.Status),
		Source:         models.SourceLDPC,
		CreatedAt:      parseCreatedAt(raw.CreatedAt),
		AlgorithmType:  raw.AlgorithmType,
		Payload:        payload,
		Results:        raw.Results,
	}
}

// SortByCreated sorts jobs newest first, in place. Ties keep their
// relative order so repeated aggregations of the same inputs are
// element-wise identical.
func SortByCreated(jobs []models.JobRecord) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

// parseCreatedAt resolves the first non-empty candidate into a timestamp.
// An unparsable value yields the zero time (sorts oldest); no candidates
// at all means the record was just created.
func parseCreatedAt(candidates ...string) time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, layout := range createdAtLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t
			}
		}
		return time.Time{}
	}
	return time.Now()
}
