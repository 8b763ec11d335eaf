package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"aqar/internal/amqp"
	"aqar/internal/reports"
	"aqar/internal/storage"
)

type fakeStore struct {
	runs      map[string]*storage.ReportRun
	completed []string
	failed    map[string]string
}

func newFakeStore(runs ...*storage.ReportRun) *fakeStore {
	s := &fakeStore{runs: map[string]*storage.ReportRun{}, failed: map[string]string{}}
	for _, r := range runs {
		s.runs[r.ID] = r
	}
	return s
}

func (s *fakeStore) GetReportRun(_ context.Context, id string) (*storage.ReportRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return run, nil
}

func (s *fakeStore) CompleteReportRun(_ context.Context, id string, _ []byte) error {
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeStore) FailReportRun(_ context.Context, id string, msg string) error {
	s.failed[id] = msg
	return nil
}

func (s *fakeStore) ListPendingReportRuns(_ context.Context, limit int) ([]storage.ReportRun, error) {
	out := make([]storage.ReportRun, 0, limit)
	for _, r := range s.runs {
		if r.Status == storage.RunRequested && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeBuilder struct {
	err   error
	built []string
}

func (b *fakeBuilder) BuildReport(_ context.Context, reportType string, _ reports.Request) (any, error) {
	b.built = append(b.built, reportType)
	if b.err != nil {
		return nil, b.err
	}
	return map[string]string{"report": reportType}, nil
}

type fakeExporter struct {
	rows []storage.ReportRun
}

func (e *fakeExporter) AppendRun(_ context.Context, run *storage.ReportRun) error {
	e.rows = append(e.rows, *run)
	return nil
}

func requestedRun(id, reportType string) *storage.ReportRun {
	return &storage.ReportRun{ID: id, ReportType: reportType, Status: storage.RunRequested}
}

func TestProcessRunCompletes(t *testing.T) {
	store := newFakeStore()
	builder := &fakeBuilder{}
	exporter := &fakeExporter{}
	w := NewReportWorker(store, builder, nil, exporter, DefaultConfig())

	run := requestedRun("run-1", reports.ReportOccupancy)
	if err := w.processRun(context.Background(), run); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	if len(store.completed) != 1 || store.completed[0] != "run-1" {
		t.Errorf("completed = %v, want [run-1]", store.completed)
	}
	if len(store.failed) != 0 {
		t.Errorf("failed = %v, want none", store.failed)
	}
	if len(exporter.rows) != 1 || exporter.rows[0].Status != storage.RunDone {
		t.Errorf("exported rows = %+v, want one done row", exporter.rows)
	}
	if len(exporter.rows[0].Payload) == 0 {
		t.Error("exported row should carry the payload")
	}
}

func TestProcessRunBuilderErrorMarksFailed(t *testing.T) {
	store := newFakeStore()
	builder := &fakeBuilder{err: errors.New("unknown report type: nope")}
	w := NewReportWorker(store, builder, nil, nil, DefaultConfig())

	run := requestedRun("run-2", "nope")
	if err := w.processRun(context.Background(), run); err != nil {
		t.Fatalf("processRun() should not propagate builder errors, got %v", err)
	}

	if msg, ok := store.failed["run-2"]; !ok || msg == "" {
		t.Errorf("failed = %v, want run-2 with error message", store.failed)
	}
	if len(store.completed) != 0 {
		t.Errorf("completed = %v, want none", store.completed)
	}
}

func TestProcessRunSkipsTerminalStates(t *testing.T) {
	store := newFakeStore()
	builder := &fakeBuilder{}
	w := NewReportWorker(store, builder, nil, nil, DefaultConfig())

	run := &storage.ReportRun{ID: "run-3", ReportType: reports.ReportCashflow, Status: storage.RunDone}
	if err := w.processRun(context.Background(), run); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}
	if len(builder.built) != 0 {
		t.Errorf("builder called %v times for a done run, want 0", len(builder.built))
	}
}

func TestHandleMessageDropsUnknownRuns(t *testing.T) {
	store := newFakeStore()
	builder := &fakeBuilder{}
	w := NewReportWorker(store, builder, nil, nil, DefaultConfig())

	err := w.handleMessage(context.Background(), &amqp.ReportRequestMessage{RunID: "missing"})
	if err != nil {
		t.Fatalf("handleMessage() = %v, want nil so the message is not requeued", err)
	}
	if len(builder.built) != 0 {
		t.Error("builder should not run for unknown run ids")
	}
}

func TestSweepPendingProcessesRequestedRuns(t *testing.T) {
	store := newFakeStore(
		requestedRun("run-a", reports.ReportOccupancy),
		requestedRun("run-b", reports.ReportEngagement),
		&storage.ReportRun{ID: "run-c", ReportType: reports.ReportCashflow, Status: storage.RunDone},
	)
	builder := &fakeBuilder{}
	w := NewReportWorker(store, builder, nil, nil, DefaultConfig())
	w.stopCh = make(chan struct{})

	w.sweepPending(context.Background())

	if len(store.completed) != 2 {
		t.Errorf("completed %d runs, want 2", len(store.completed))
	}
}

func TestStartStopLifecycle(t *testing.T) {
	store := newFakeStore()
	w := NewReportWorker(store, &fakeBuilder{}, nil, nil, Config{
		SweepInterval:  time.Hour,
		SweepBatchSize: 10,
	})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}
