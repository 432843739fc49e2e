// Package enrich adds live row counts to flattened dataset records.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/atd-data-tech/socrata-metadata-pub/internal/catalog"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/core"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/redact"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/worker"
)

// ErrBatchTimeout is returned when the whole count batch outlives Options.BatchTimeout.
var ErrBatchTimeout = worker.ErrBatchTimeout

// Counter runs a row count query against one dataset.
type Counter interface {
	CountRows(ctx context.Context, resourceID string) (int64, error)
}

type Options struct {
	Workers        int
	RequestTimeout time.Duration
	BatchTimeout   time.Duration
	RateLimitRPS   float64
	// FailFast aborts the batch on the first failed count. Otherwise failed records
	// keep a null row_count and the failures are reported in Summary.Err.
	FailFast bool
}

// Summary describes one enrichment batch.
type Summary struct {
	Requested int
	Counted   int
	Failed    int
	Duration  time.Duration
	// Err aggregates every per-dataset failure. Nil when Failed is zero.
	Err error
}

// CountError is the failure of one dataset's count query.
type CountError struct {
	ID  string
	Err error
}

func (e *CountError) Error() string {
	return fmt.Sprintf("count rows of %s: %s", e.ID, redact.Secrets(e.Err.Error()))
}

func (e *CountError) Unwrap() error {
	return e.Err
}

// RowCounts queries one count per dataset record and returns records with RowCount set.
//
// The input slice is not modified. Non-dataset records are returned unchanged.
func RowCounts(ctx context.Context, records []catalog.OutputRecord, counter Counter, opts Options, logger zerolog.Logger) ([]catalog.OutputRecord, Summary, error) {
	start := time.Now()

	var ids []string
	for _, r := range records {
		if r.IsDataset() {
			ids = append(ids, r.ID)
		}
	}
	summary := Summary{Requested: len(ids)}

	policy := worker.FailurePolicyPartialOutput
	if opts.FailFast {
		policy = worker.FailurePolicyFailFast
	}

	counts := make(map[string]int64, len(ids))
	var failures *multierror.Error
	_, err := worker.ProcessAllWithCallback(ctx, ids, core.ProcessFunc[string, int64](counter.CountRows),
		func(res worker.Result[string, int64]) error {
			if res.Err != nil {
				failures = multierror.Append(failures, &CountError{ID: res.Input, Err: res.Err})
				logger.Warn().Str("id", res.Input).Str("error", redact.Secrets(res.Err.Error())).Msg("row count failed")
				return nil
			}
			counts[res.Input] = res.Output
			logger.Debug().Str("id", res.Input).Int64("row_count", res.Output).Msg("row count fetched")
			return nil
		},
		worker.Options{
			Workers:        opts.Workers,
			RequestTimeout: opts.RequestTimeout,
			BatchTimeout:   opts.BatchTimeout,
			RateLimitRPS:   opts.RateLimitRPS,
			FailurePolicy:  policy,
		},
	)
	summary.Duration = time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrBatchTimeout):
			return nil, summary, fmt.Errorf("row count batch of %d datasets: %w", len(ids), err)
		case ctx.Err() != nil:
			return nil, summary, err
		default:
			return nil, summary, &CountError{ID: firstFailedID(failures), Err: err}
		}
	}

	out := make([]catalog.OutputRecord, len(records))
	for i, r := range records {
		if n, ok := counts[r.ID]; ok && r.IsDataset() {
			r.RowCount = &n
		}
		out[i] = r
	}

	summary.Counted = len(counts)
	summary.Failed = summary.Requested - summary.Counted
	summary.Err = failures.ErrorOrNil()
	return out, summary, nil
}

func firstFailedID(failures *multierror.Error) string {
	if failures == nil {
		return ""
	}
	var ce *CountError
	for _, e := range failures.Errors {
		if errors.As(e, &ce) {
			return ce.ID
		}
	}
	return ""
}
