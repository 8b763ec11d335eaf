// Package http exposes the reporting API consumed by the dashboard.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"aqar/internal/amqp"
	"aqar/internal/core"
	"aqar/internal/reports"
	"aqar/internal/storage"
)

// ReportAPI is the synchronous report surface the handlers serve.
type ReportAPI interface {
	BuildContractStatement(ctx context.Context, contractID int64, ratePercent float64, basis core.RateBasis, advance *decimal.Decimal) (*reports.ContractStatement, error)
	ListContractSummaries(ctx context.Context, q reports.ContractQuery) ([]reports.ContractSummary, error)
	Cashflow(ctx context.Context, year int) (*reports.CashflowReport, error)
	ExpenseBreakdown(ctx context.Context, groupBy string, from, to time.Time) (*reports.ExpenseBreakdownReport, error)
	Occupancy(ctx context.Context) (*reports.OccupancyReport, error)
	Engagement(ctx context.Context) (*reports.EngagementReport, error)
}

// RunStore persists queued report runs.
type RunStore interface {
	CreateReportRun(ctx context.Context, run *storage.ReportRun) error
	GetReportRun(ctx context.Context, id string) (*storage.ReportRun, error)
}

// RunPublisher hands a run request to the worker.
type RunPublisher interface {
	PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error
}

// Pinger reports whether the backing store is reachable, for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	reports   ReportAPI
	runs      RunStore
	publisher RunPublisher
	pinger    Pinger
	limiter   *clientLimiter
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// publisher and pinger may be nil; runs then stay sweep-only and readiness
// always succeeds.
func NewServer(addr string, api ReportAPI, runs RunStore, publisher RunPublisher, pinger Pinger) *Server {
	s := &Server{
		reports:   api,
		runs:      runs,
		publisher: publisher,
		pinger:    pinger,
		limiter:   newClientLimiter(),
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(securityHeaders)
	r.Use(metrics)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/contracts", s.handleListContracts)
		r.Get("/contracts/{id}/balance", s.handleContractBalance)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/cashflow", s.handleCashflow)
			r.Get("/expenses", s.handleExpenseBreakdown)
			r.Get("/occupancy", s.handleOccupancy)
			r.Get("/engagement", s.handleEngagement)
			r.With(s.rateLimit).Post("/runs", s.handleCreateRun)
			r.Get("/runs/{id}", s.handleGetRun)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Shutdown stops the server and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
