package orchestrator

import (
	"context"
	"time"

	"sjsage522/listingworker/internal/report"
	"sjsage522/listingworker/logger"
)

// Worker repeats ingestion runs and records every report to its sinks
type Worker struct {
	orch     *Orchestrator
	sinks    []report.Sink
	interval time.Duration
	log      *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(orch *Orchestrator, interval time.Duration, sinks ...report.Sink) *Worker {
	return &Worker{
		orch:     orch,
		sinks:    sinks,
		interval: interval,
		log:      logger.ForComponent("worker"),
	}
}

// Start runs cycles until ctx is cancelled, waiting interval between the end
// of one run and the start of the next
func (w *Worker) Start(ctx context.Context) error {
	for {
		w.RunOnce(ctx)

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce runs a single cycle and records its summary. Sink errors are logged.
func (w *Worker) RunOnce(ctx context.Context) Report {
	r := w.orch.RunAll(ctx)
	summary := r.Summary()

	completeness, newAds := summary.Lines()
	w.log.Info().
		Str("run_id", r.RunID).
		Strs("completeness", completeness).
		Strs("new_ads", newAds).
		Msg("Run summary")

	// sinks still get the summary when the run was cancelled
	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range w.sinks {
		if err := sink.Record(sinkCtx, summary); err != nil {
			w.log.Error().Err(err).Str("run_id", r.RunID).Msg("Failed to record run summary")
		}
	}
	return r
}
