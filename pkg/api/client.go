// Package api is the HTTP client for the hardware-test proxy API. All
// calls take a context and return wrapped errors; policy decisions
// (degrade, retry, report offline) belong to the callers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vlsilab/chipdash/pkg/aggregate"
	"github.com/vlsilab/chipdash/pkg/models"
	"github.com/vlsilab/chipdash/pkg/tracing"
)

// ErrAPIOffline is returned when every upstream source is unreachable.
var ErrAPIOffline = errors.New("api offline: all job sources unreachable")

// DefaultListTimeout bounds each source list fetch. A timed-out source is
// treated as failed for that cycle, not retried immediately.
const DefaultListTimeout = 8 * time.Second

// Client talks to the test proxy API.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	listTimeout time.Duration
}

// NewClient creates a client for the given proxy base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		listTimeout: DefaultListTimeout,
	}
}

// SetAPIKey sets the bearer token for authenticated deployments.
func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}

// SetListTimeout overrides the per-source list fetch timeout.
func (c *Client) SetListTimeout(d time.Duration) {
	if d > 0 {
		c.listTimeout = d
	}
}

// BaseURL returns the configured proxy base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	tracing.Inject(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach proxy API: %w", err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// FetchTests retrieves the generic test collection. Both documented
// response shapes are accepted: {"tests": [...]} and a bare array.
func (c *Client) FetchTests(ctx context.Context) ([]models.RawGeneric, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tests")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var wrapped struct {
		Tests []models.RawGeneric `json:"tests"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Tests != nil {
		return wrapped.Tests, nil
	}

	var bare []models.RawGeneric
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("failed to parse tests response: %w", err)
	}
	return bare, nil
}

// FetchLDPCJobs retrieves the LDPC job collection.
func (c *Client) FetchLDPCJobs(ctx context.Context) ([]models.RawLDPC, error) {
	var result struct {
		Jobs []models.RawLDPC `json:"jobs"`
	}
	if err := c.getJSON(ctx, "/ldpc/jobs", &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// FetchTest retrieves one generic test by id.
func (c *Client) FetchTest(ctx context.Context, id string) (*models.RawGeneric, error) {
	var raw models.RawGeneric
	if err := c.getJSON(ctx, "/tests/"+id, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// FetchLDPCJob retrieves one LDPC job by id, including its embedded
// per-run result array.
func (c *Client) FetchLDPCJob(ctx context.Context, id string) (*models.RawLDPC, error) {
	var raw models.RawLDPC
	if err := c.getJSON(ctx, "/ldpc/jobs/"+id, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// FetchRecord retrieves the latest normalized snapshot of a job from
// whichever collection owns it.
func (c *Client) FetchRecord(ctx context.Context, source models.Source, id string) (*models.JobRecord, error) {
	switch source {
	case models.SourceLDPC:
		raw, err := c.FetchLDPCJob(ctx, id)
		if err != nil {
			return nil, err
		}
		rec := aggregate.NormalizeLDPC(*raw)
		return &rec, nil
	default:
		raw, err := c.FetchTest(ctx, id)
		if err != nil {
			return nil, err
		}
		rec := aggregate.NormalizeGeneric(*raw)
		return &rec, nil
	}
}

// Delete removes a job from whichever collection owns it. Callers drop the
// id from their in-memory list only after this returns nil.
func (c *Client) Delete(ctx context.Context, source models.Source, id string) error {
	path := "/tests/" + id
	if source == models.SourceLDPC {
		path = "/ldpc/jobs/" + id
	}

	resp, err := c.do(ctx, http.MethodDelete, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Rerun requeues a test with its original parameters. The caller triggers
// a full re-aggregation on success.
func (c *Client) Rerun(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodPost, "/tests/"+id+"/rerun")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rerun failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Download streams the result archive for a test into dest. The byte
// format is opaque to the dashboard; it only lands the blob on disk.
func (c *Client) Download(ctx context.Context, id, dest string) error {
	resp, err := c.do(ctx, http.MethodGet, "/tests/"+id+"/download")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("download failed (status %d): %s", resp.StatusCode, string(body))
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
