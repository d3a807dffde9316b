// Package server exposes the aggregated dashboard as a local HTTP API, so
// frontends talk to one merged, normalized job list instead of the two
// upstream collections.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vlsilab/chipdash/pkg/aggregate"
	"github.com/vlsilab/chipdash/pkg/api"
	"github.com/vlsilab/chipdash/pkg/derive"
	"github.com/vlsilab/chipdash/pkg/logging"
	"github.com/vlsilab/chipdash/pkg/metrics"
	"github.com/vlsilab/chipdash/pkg/models"
	"github.com/vlsilab/chipdash/pkg/poll"
	"github.com/vlsilab/chipdash/pkg/ratelimit"
	"github.com/vlsilab/chipdash/pkg/session"
	"github.com/vlsilab/chipdash/pkg/sysinfo"
	"github.com/vlsilab/chipdash/pkg/tracing"
)

// Handler serves the local dashboard API.
type Handler struct {
	session   *session.Session
	client    *api.Client
	collector *metrics.Collector
	health    *poll.HealthChecker
	logger    *logging.Logger
}

// NewHandler creates the dashboard API handler.
func NewHandler(sess *session.Session, client *api.Client, collector *metrics.Collector, health *poll.HealthChecker, logger *logging.Logger) *Handler {
	return &Handler{
		session:   sess,
		client:    client,
		collector: collector,
		health:    health,
		logger:    logger,
	}
}

// Router builds the route table with rate limiting and tracing applied.
func (h *Handler) Router(limiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(tracing.HTTPMiddleware))
	if limiter != nil {
		r.Use(mux.MiddlewareFunc(limiter.Middleware))
	}

	r.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	r.HandleFunc("/jobs/{id}", h.DeleteJob).Methods("DELETE")
	r.HandleFunc("/jobs/{id}/metrics", h.GetJobMetrics).Methods("GET")
	r.HandleFunc("/jobs/{id}/rerun", h.RerunJob).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", h.collector.Handler()).Methods("GET")
	return r
}

// ListJobs refreshes the aggregate and returns one filtered page.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	jobs := h.session.Jobs()
	h.collector.ObserveJobs(jobs)

	q := r.URL.Query()
	filter := aggregate.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if status := q.Get("status"); status != "" {
		filter.Status = models.NormalizeStatus(status)
	}
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filtered := filter.Apply(jobs)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":       aggregate.Paginate(filtered, page, aggregate.DefaultPageSize),
		"total":      len(filtered),
		"page":       page,
		"page_count": aggregate.PageCount(len(filtered), aggregate.DefaultPageSize),
		"offline":    h.session.Offline(),
	})
}

// GetJob returns one normalized record.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.session.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job id")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobMetrics derives statistics from the job's real result array.
// Jobs without results report derived_metrics null rather than synthetic
// numbers.
func (h *Handler) GetJobMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.session.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job id")
		return
	}

	job, err := h.withResults(r.Context(), job)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	m := derive.Metrics(job.Results, models.DefaultCodeParams(), job.AlgorithmType)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":          job.ID,
		"derived_metrics": m,
		"run_count":       len(job.Results),
	})
}

// withResults fetches the detail record when the cached one has no
// embedded results yet.
func (h *Handler) withResults(ctx context.Context, job models.JobRecord) (models.JobRecord, error) {
	if len(job.Results) > 0 {
		return job, nil
	}
	snapshot, err := h.client.FetchRecord(ctx, job.Source, job.ID)
	if err != nil {
		return job, err
	}
	job.Results = snapshot.Results
	return job, nil
}

// DeleteJob removes a job upstream, then from the merged list.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.session.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// RerunJob requeues a test and re-aggregates.
func (h *Handler) RerunJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.session.Rerun(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rerun": id})
}

// Health reports upstream availability plus a snapshot of the dashboard
// host itself.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	upstream := "online"
	if h.health != nil && !h.health.Online() {
		upstream = "offline"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"upstream": upstream,
		"host":     sysinfo.Collect(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
