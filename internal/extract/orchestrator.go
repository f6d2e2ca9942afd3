package extract

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// ProgressFunc receives (processed, total) after every item, successful or
// failed.
type ProgressFunc func(processed, total int)

// ItemError records one image that could not be extracted.
type ItemError struct {
	ImagePath string
	Err       error
}

// Orchestrator rate-limits and batches calls to an extraction backend. The
// limiter is owned by the orchestrator instance and shared by every worker
// it schedules, so the requests-per-minute ceiling holds across the whole
// batch regardless of concurrency.
type Orchestrator struct {
	backend       Backend
	limiter       *rate.Limiter
	rpm           int
	maxConcurrent int
}

// NewOrchestrator wraps a backend with an rpm ceiling and a worker bound.
// rpm <= 0 disables rate limiting (local backends); maxConcurrent <= 0
// runs items one at a time.
func NewOrchestrator(backend Backend, rpm, maxConcurrent int) *Orchestrator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Orchestrator{backend: backend, limiter: limiter, rpm: rpm, maxConcurrent: maxConcurrent}
}

// Backend returns the wrapped extraction backend.
func (o *Orchestrator) Backend() Backend {
	return o.backend
}

// ProcessBatch extracts every image independently. Per-image failures are
// logged and excluded from the output, never aborting the batch. The output
// order matches the input order of the successful items.
func (o *Orchestrator) ProcessBatch(ctx context.Context, imagePaths []string, progress ProgressFunc) ([]*model.ExtractionRecord, []ItemError) {
	total := len(imagePaths)
	results := make([]*model.ExtractionRecord, total)
	errs := make([]error, total)

	var done atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(o.maxConcurrent)
	for i, path := range imagePaths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := o.limiter.Wait(ctx); err != nil {
				errs[i] = err
				return nil
			}
			rec, err := o.backend.Extract(ctx, path)
			if err != nil {
				zap.L().Warn("extract: item failed",
					zap.String("image", path),
					zap.String("backend", o.backend.Name()),
					zap.Error(err),
				)
				errs[i] = err
			} else {
				results[i] = rec
			}
			if progress != nil {
				progress(int(done.Add(1)), total)
			}
			return nil
		})
	}
	_ = g.Wait()

	records := make([]*model.ExtractionRecord, 0, total)
	var failures []ItemError
	for i, path := range imagePaths {
		switch {
		case results[i] != nil:
			records = append(records, results[i])
		case errs[i] != nil:
			failures = append(failures, ItemError{ImagePath: path, Err: errs[i]})
		}
	}

	zap.L().Info("extract: batch complete",
		zap.String("backend", o.backend.Name()),
		zap.Int("total", total),
		zap.Int("extracted", len(records)),
		zap.Int("failed", len(failures)),
	)
	return records, failures
}
