package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"aqar/internal/amqp"
	"aqar/internal/core"
	"aqar/internal/reports"
	"aqar/internal/storage"
)

func (s *Server) handleContractBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	q := r.URL.Query()
	ratePercent := parseFloatParam(q, "rate", 0)
	basis := core.RateBasis("")
	if v := strings.TrimSpace(q.Get("basis")); v != "" {
		basis = core.NormalizeRateBasis(v)
	}
	var advance *decimal.Decimal
	if v := strings.TrimSpace(q.Get("advance")); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			advance = &d
		}
	}

	statement, err := s.reports.BuildContractStatement(r.Context(), id, ratePercent, basis, advance)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "contract not found")
			return
		}
		slog.ErrorContext(r.Context(), "Contract statement failed", "contract_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build statement")
		return
	}

	respondJSON(w, http.StatusOK, statement)
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := reports.ContractQuery{
		Search: strings.TrimSpace(q.Get("q")),
		Status: strings.ToLower(strings.TrimSpace(q.Get("status"))),
		From:   parseDateParam(q, "from"),
		To:     parseDateParam(q, "to"),
		Sort:   parseSortSpecs(q),
	}

	summaries, err := s.reports.ListContractSummaries(r.Context(), query)
	if err != nil {
		slog.ErrorContext(r.Context(), "Contract list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list contracts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"contracts": summaries,
		"count":     len(summaries),
	})
}

func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	year := parseYearParam(r.URL.Query(), time.Now())

	report, err := s.reports.Cashflow(r.Context(), year)
	if err != nil {
		slog.ErrorContext(r.Context(), "Cashflow report failed", "year", year, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build cashflow report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleExpenseBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	groupBy := strings.ToLower(strings.TrimSpace(q.Get("group")))
	if groupBy == "" {
		groupBy = reports.GroupByType
	}

	report, err := s.reports.ExpenseBreakdown(r.Context(), groupBy,
		parseDateParam(q, "from"), parseDateParam(q, "to"))
	if err != nil {
		if strings.Contains(err.Error(), "unknown expense grouping") {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Expense breakdown failed", "group", groupBy, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build expense breakdown")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.Occupancy(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Occupancy report failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build occupancy report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.Engagement(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Engagement report failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build engagement report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type createRunRequest struct {
	ReportType  string  `json:"reportType"`
	ScopeID     int64   `json:"scopeId"`
	PeriodFrom  string  `json:"periodFrom"`
	PeriodTo    string  `json:"periodTo"`
	RatePercent float64 `json:"ratePercent"`
	RateBasis   string  `json:"rateBasis"`
}

type runResponse struct {
	ID          string          `json:"id"`
	ReportType  string          `json:"reportType"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	RequestedAt time.Time       `json:"requestedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// handleCreateRun records a run and hands it to the worker. The queue
// publish is best effort; the worker's sweep picks up runs whose message
// never arrived.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := reports.GetBuilder(req.ReportType); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	run := &storage.ReportRun{
		ID:          uuid.NewString(),
		ReportType:  req.ReportType,
		ScopeID:     req.ScopeID,
		PeriodFrom:  parseRunDate(req.PeriodFrom),
		PeriodTo:    parseRunDate(req.PeriodTo),
		RatePercent: req.RatePercent,
		RateBasis:   req.RateBasis,
	}
	if err := s.runs.CreateReportRun(r.Context(), run); err != nil {
		slog.ErrorContext(r.Context(), "Failed to create report run", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create report run")
		return
	}

	if s.publisher != nil {
		msg := &amqp.ReportRequestMessage{
			RunID:       run.ID,
			ReportType:  run.ReportType,
			ScopeID:     run.ScopeID,
			PeriodFrom:  req.PeriodFrom,
			PeriodTo:    req.PeriodTo,
			RatePercent: run.RatePercent,
			RateBasis:   run.RateBasis,
			Timestamp:   time.Now(),
		}
		if err := s.publisher.PublishReportRequest(r.Context(), msg); err != nil {
			slog.WarnContext(r.Context(), "Failed to publish run request, sweep will pick it up",
				"run_id", run.ID, "error", err)
		}
	}

	respondJSON(w, http.StatusAccepted, runResponse{
		ID:         run.ID,
		ReportType: run.ReportType,
		Status:     storage.RunRequested,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetReportRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "report run not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to load report run", "run_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load report run")
		return
	}

	resp := runResponse{
		ID:          run.ID,
		ReportType:  run.ReportType,
		Status:      run.Status,
		Error:       run.Error,
		RequestedAt: run.RequestedAt,
	}
	if !run.CompletedAt.IsZero() {
		t := run.CompletedAt
		resp.CompletedAt = &t
	}
	if run.Status == storage.RunDone && len(run.Payload) > 0 {
		resp.Payload = json.RawMessage(run.Payload)
	}

	respondJSON(w, http.StatusOK, resp)
}

func parseRunDate(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
