// Package worker builds queued report runs in the background.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"aqar/internal/amqp"
	"aqar/internal/reports"
	"aqar/internal/storage"
)

var runsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aqar_report_runs_processed_total",
	Help: "Report runs processed by the worker, by report type and outcome.",
}, []string{"report_type", "outcome"})

// RunStore is the report run persistence the worker needs.
type RunStore interface {
	GetReportRun(ctx context.Context, id string) (*storage.ReportRun, error)
	CompleteReportRun(ctx context.Context, id string, payload []byte) error
	FailReportRun(ctx context.Context, id string, msg string) error
	ListPendingReportRuns(ctx context.Context, limit int) ([]storage.ReportRun, error)
}

// Builder turns a run's parameters into a report payload.
type Builder interface {
	BuildReport(ctx context.Context, reportType string, req reports.Request) (any, error)
}

// RunExporter mirrors finished runs to an external audit surface.
type RunExporter interface {
	AppendRun(ctx context.Context, run *storage.ReportRun) error
}

// Config holds the worker's tuning knobs.
type Config struct {
	// SweepInterval is how often to re-check for runs whose queue message
	// was lost.
	SweepInterval time.Duration

	// SweepBatchSize is the max runs picked up per sweep.
	SweepBatchSize int
}

func DefaultConfig() Config {
	return Config{
		SweepInterval:  30 * time.Second,
		SweepBatchSize: 10,
	}
}

// ReportWorker consumes report requests from the queue and builds them. A
// periodic sweep over still-requested runs backs up the queue path, so a
// lost message delays a run instead of losing it.
type ReportWorker struct {
	store    RunStore
	builder  Builder
	client   *amqp.Client
	exporter RunExporter
	config   Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReportWorker(store RunStore, builder Builder, client *amqp.Client, exporter RunExporter, config Config) *ReportWorker {
	return &ReportWorker{
		store:    store,
		builder:  builder,
		client:   client,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the sweep loop and, when a queue client is configured, the
// consume loop. Returns an error if already running.
func (w *ReportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("report worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	if w.client != nil {
		go func() {
			if err := w.client.ConsumeReportRequests(ctx, func(msg *amqp.ReportRequestMessage) error {
				return w.handleMessage(ctx, msg)
			}); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Report request consumer stopped", "error", err)
			}
		}()
	} else {
		slog.WarnContext(ctx, "No AMQP client configured, relying on sweep only")
	}

	slog.InfoContext(ctx, "Report worker started",
		"sweep_interval", w.config.SweepInterval,
		"sweep_batch_size", w.config.SweepBatchSize)

	return nil
}

// Stop gracefully stops the worker and waits for the sweep loop to finish.
func (w *ReportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Report worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the worker is currently running.
func (w *ReportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ReportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Sweep immediately on startup to pick up runs queued while down.
	w.sweepPending(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepPending(ctx)
		}
	}
}

// handleMessage processes one queued report request. Unknown run ids are
// dropped rather than requeued; the sweep will never resurrect them either.
func (w *ReportWorker) handleMessage(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	run, err := w.store.GetReportRun(ctx, msg.RunID)
	if err != nil {
		slog.WarnContext(ctx, "Dropping request for unknown run", "run_id", msg.RunID, "error", err)
		return nil
	}
	return w.processRun(ctx, run)
}

func (w *ReportWorker) sweepPending(ctx context.Context) {
	runs, err := w.store.ListPendingReportRuns(ctx, w.config.SweepBatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending report runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	slog.DebugContext(ctx, "Sweeping pending report runs", "count", len(runs))

	for i := range runs {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := w.processRun(ctx, &runs[i]); err != nil {
			slog.ErrorContext(ctx, "Failed to process report run",
				"run_id", runs[i].ID, "error", err)
		}
	}
}

// processRun builds one run and persists the outcome. Builder errors are
// deterministic for a given run, so they mark the run failed instead of
// returning an error that would requeue the message.
func (w *ReportWorker) processRun(ctx context.Context, run *storage.ReportRun) error {
	if run.Status != storage.RunRequested {
		slog.DebugContext(ctx, "Skipping run in terminal state",
			"run_id", run.ID, "status", run.Status)
		return nil
	}

	req := reports.Request{
		ScopeID:     run.ScopeID,
		PeriodFrom:  run.PeriodFrom,
		PeriodTo:    run.PeriodTo,
		RatePercent: run.RatePercent,
		RateBasis:   run.RateBasis,
	}

	payload, err := w.builder.BuildReport(ctx, run.ReportType, req)
	if err != nil {
		runsProcessed.WithLabelValues(run.ReportType, "failed").Inc()
		if failErr := w.store.FailReportRun(ctx, run.ID, err.Error()); failErr != nil {
			return fmt.Errorf("mark run failed: %w", failErr)
		}
		run.Status = storage.RunFailed
		run.Error = err.Error()
		w.export(ctx, run)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal report payload: %w", err)
	}

	if err := w.store.CompleteReportRun(ctx, run.ID, body); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}

	runsProcessed.WithLabelValues(run.ReportType, "done").Inc()
	run.Status = storage.RunDone
	run.Payload = body
	run.CompletedAt = time.Now().UTC()
	w.export(ctx, run)

	slog.InfoContext(ctx, "Built report run",
		"run_id", run.ID,
		"report_type", run.ReportType,
		"payload_bytes", len(body))

	return nil
}

// export is best effort. A sheet outage must not fail a finished run.
func (w *ReportWorker) export(ctx context.Context, run *storage.ReportRun) {
	if w.exporter == nil {
		return
	}
	if err := w.exporter.AppendRun(ctx, run); err != nil {
		slog.WarnContext(ctx, "Failed to export run to sheet", "run_id", run.ID, "error", err)
	}
}
