// Package export serializes a job plus its derived metrics into a
// self-contained JSON report.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vlsilab/chipdash/pkg/models"
)

// Report is the downloadable analysis bundle. individual_results carries
// the raw runs so a report can be re-derived independently of the API.
type Report struct {
	ExportID          string                 `json:"export_id"`
	JobInfo           models.JobRecord       `json:"job_info"`
	DerivedMetrics    *models.DerivedMetrics `json:"derived_metrics"`
	IndividualResults []models.RunResult     `json:"individual_results"`
	ExportTimestamp   string                 `json:"export_timestamp"`
}

// NewReport assembles a report. DerivedMetrics stays nil when the job has
// no real results; the report still carries the job info.
func NewReport(job models.JobRecord, metrics *models.DerivedMetrics) Report {
	return Report{
		ExportID:          uuid.New().String(),
		JobInfo:           job,
		DerivedMetrics:    metrics,
		IndividualResults: job.Results,
		ExportTimestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// WriteFile writes the report as indented JSON.
func WriteFile(report Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
