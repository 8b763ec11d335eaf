package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Report run lifecycle states.
const (
	RunRequested = "requested"
	RunDone      = "done"
	RunFailed    = "failed"
)

// ReportRun is a queued or finished report build. The stored query
// parameters (period, rate, basis) plus the JSON payload are the stable
// interface the external PDF service reads.
type ReportRun struct {
	ID          string
	ReportType  string
	ScopeID     int64
	PeriodFrom  time.Time
	PeriodTo    time.Time
	RatePercent float64
	RateBasis   string
	Status      string
	Payload     []byte
	Error       string
	RequestedAt time.Time
	CompletedAt time.Time
}

// CreateReportRun records a requested run.
func (r *SQLiteRepository) CreateReportRun(ctx context.Context, run *ReportRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO report_runs (id, report_type, scope_id, period_from, period_to, rate_percent, rate_basis, status, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ReportType, run.ScopeID,
		formatDate(run.PeriodFrom), formatDate(run.PeriodTo),
		run.RatePercent, run.RateBasis, RunRequested, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create report run: %w", err)
	}

	slog.InfoContext(ctx, "Report run recorded",
		"component", "storage",
		"run_id", run.ID,
		"report_type", run.ReportType,
		"scope_id", run.ScopeID)
	return nil
}

// GetReportRun fetches one run by id.
func (r *SQLiteRepository) GetReportRun(ctx context.Context, id string) (*ReportRun, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, report_type, scope_id, period_from, period_to, rate_percent, rate_basis, status, payload, error, requested_at, COALESCE(completed_at, '')
		 FROM report_runs WHERE id = ?`, id)

	var run ReportRun
	var from, to, payload, completed string
	var requested time.Time
	err := row.Scan(&run.ID, &run.ReportType, &run.ScopeID, &from, &to,
		&run.RatePercent, &run.RateBasis, &run.Status, &payload, &run.Error, &requested, &completed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get report run: %w", err)
	}
	run.PeriodFrom = parseDate(from)
	run.PeriodTo = parseDate(to)
	run.Payload = []byte(payload)
	run.RequestedAt = requested
	run.CompletedAt = parseDate(completed)
	return &run, nil
}

// CompleteReportRun stores the finished payload and marks the run done.
func (r *SQLiteRepository) CompleteReportRun(ctx context.Context, id string, payload []byte) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE report_runs SET status = ?, payload = ?, error = '', completed_at = ? WHERE id = ?`,
		RunDone, string(payload), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("complete report run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("report run %s: %w", id, ErrNotFound)
	}
	return nil
}

// FailReportRun marks a run failed with its error message. Failed runs
// stay visible so the sweep and the dashboard can surface them.
func (r *SQLiteRepository) FailReportRun(ctx context.Context, id string, msg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE report_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		RunFailed, msg, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("fail report run: %w", err)
	}

	slog.WarnContext(ctx, "Report run failed", "component", "storage", "run_id", id, "error", msg)
	return nil
}

// ListPendingReportRuns returns runs still waiting to be built, oldest
// first. The worker's periodic sweep uses this as a backup for lost
// queue messages.
func (r *SQLiteRepository) ListPendingReportRuns(ctx context.Context, limit int) ([]ReportRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, report_type, scope_id, period_from, period_to, rate_percent, rate_basis, status, requested_at
		 FROM report_runs WHERE status = ? ORDER BY requested_at LIMIT ?`, RunRequested, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending report runs: %w", err)
	}
	defer rows.Close()

	out := make([]ReportRun, 0, limit)
	for rows.Next() {
		var run ReportRun
		var from, to string
		if err := rows.Scan(&run.ID, &run.ReportType, &run.ScopeID, &from, &to,
			&run.RatePercent, &run.RateBasis, &run.Status, &run.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan report run: %w", err)
		}
		run.PeriodFrom = parseDate(from)
		run.PeriodTo = parseDate(to)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending report runs: %w", err)
	}
	return out, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
