package api

import (
	"context"
)

// HealthStatus is the upstream health report. Aggregation is only
// attempted while the API reports itself reachable.
type HealthStatus struct {
	APIStatus      string `json:"api_status"`
	DatabaseStatus string `json:"database_status,omitempty"`
	Version        string `json:"version,omitempty"`
}

// Online reports whether the upstream considers itself healthy. An empty
// api_status from an older proxy build counts as healthy because the
// endpoint answered at all.
func (h HealthStatus) Online() bool {
	return h.APIStatus == "" || h.APIStatus == "ok" || h.APIStatus == "healthy"
}

// Health probes the upstream health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, "/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}
