package api

import (
	"context"

	"github.com/vlsilab/chipdash/pkg/models"
	"github.com/vlsilab/chipdash/pkg/tracing"
)

// FetchResult carries the outcome of one dual-source fetch cycle. A failed
// source is reported through its error field and contributes an empty
// slice, so the result can always be handed straight to aggregation.
type FetchResult struct {
	Generic    []models.RawGeneric
	LDPC       []models.RawLDPC
	GenericErr error
	LDPCErr    error
}

// Offline reports whether both sources failed this cycle.
func (r FetchResult) Offline() bool {
	return r.GenericErr != nil && r.LDPCErr != nil
}

// FetchAll fetches both job collections concurrently. Each fetch runs
// under its own list timeout and fails independently: one source going
// down degrades that source to empty rather than failing the cycle. Only
// when both sources fail does FetchAll return ErrAPIOffline alongside the
// per-source errors in the result.
func (c *Client) FetchAll(ctx context.Context) (FetchResult, error) {
	ctx, span := tracing.Start(ctx, "api.FetchAll")
	defer span.End()

	var result FetchResult

	genericCh := make(chan error, 1)
	ldpcCh := make(chan error, 1)

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, c.listTimeout)
		defer cancel()
		tests, err := c.FetchTests(fetchCtx)
		result.Generic = tests
		genericCh <- err
	}()
	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, c.listTimeout)
		defer cancel()
		jobs, err := c.FetchLDPCJobs(fetchCtx)
		result.LDPC = jobs
		ldpcCh <- err
	}()

	// The two fetches may complete in either order.
	result.GenericErr = <-genericCh
	result.LDPCErr = <-ldpcCh

	if result.GenericErr != nil {
		result.Generic = nil
		tracing.RecordError(ctx, result.GenericErr)
	}
	if result.LDPCErr != nil {
		result.LDPC = nil
		tracing.RecordError(ctx, result.LDPCErr)
	}

	if result.Offline() {
		return result, ErrAPIOffline
	}
	return result, nil
}
