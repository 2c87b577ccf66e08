// Package pipeline runs the request processing loop: extract a conversion
// request, resolve or produce every product in it, publish the report.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/metno/netcdf-ondemand/internal/domain"
	"github.com/metno/netcdf-ondemand/internal/observability"
)

// Extractor reads the next conversion request from the source.
type Extractor interface {
	Extract(ctx context.Context) (domain.ConversionRequest, error)
}

// Loader publishes a finished report to the destination.
type Loader interface {
	Load(ctx context.Context, rep domain.Report) error
}

// RequestProcessor handles one request end to end.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req domain.ConversionRequest) domain.Report
}

// Pipeline orchestrates the extract-process-publish loop.
type Pipeline struct {
	extractor Extractor
	processor RequestProcessor
	loader    Loader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, p RequestProcessor, l Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		processor: p,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the pipeline has handled at least one
// request, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not handled any requests yet")
	}
	return nil
}

// Run executes the request loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.handleNext(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// handleNext runs one extract-process-publish cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) handleNext(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	req, err := p.extractor.Extract(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract request failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}
	*backoff = 200 * time.Millisecond

	rep := p.processor.ProcessRequest(ctx, req)

	if err := p.loader.Load(ctx, rep); err != nil {
		// The request was handled; artifacts are in place even if the report
		// could not be published. Commit below so a restart does not redo
		// the work, and rely on the scratch tier for the re-request case.
		p.logger.Error("publish report failed", "error", err, "request_id", req.ID)
	} else {
		p.metrics.ReportsPublished.Inc()
	}

	p.commitRequest(ctx, req)
	p.ready.Store(true)
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances it. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitRequest acknowledges the request if a commit function is available.
func (p *Pipeline) commitRequest(ctx context.Context, req domain.ConversionRequest) {
	if req.Commit == nil {
		return
	}
	if err := req.Commit(ctx); err != nil {
		p.logger.Warn("commit request failed", "error", err, "request_id", req.ID)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
