package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aqar/internal/amqp"
	"aqar/internal/config"
	"aqar/internal/core"
	"aqar/internal/export"
	applog "aqar/internal/log"
	"aqar/internal/reports"
	"aqar/internal/storage"
	"aqar/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	applog.Setup(cfg.LogLevel, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("Starting aqar-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sheets export is optional; a nil exporter disables it.
	var exporter worker.RunExporter
	sheets, err := export.NewSheetsExporter(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize Sheets exporter", "error", err)
		os.Exit(1)
	}
	if sheets != nil {
		exporter = sheets
	} else {
		logger.Info("Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// The worker keeps running without the broker; the sweep alone then
	// drains queued runs.
	var amqpClient *amqp.Client
	if client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue); err != nil {
		logger.Warn("AMQP unavailable, running sweep-only", "error", err)
	} else {
		amqpClient = client
		defer amqpClient.Close()
	}

	reportService := reports.NewService(repo,
		cfg.OfficeRatePercent,
		core.NormalizeRateBasis(cfg.OfficeRateBasis),
		cfg.UsageWindowDays,
		cfg.DormantAfterDays)

	w := worker.NewReportWorker(repo, reportService, amqpClient, exporter, worker.Config{
		SweepInterval:  cfg.SweepInterval,
		SweepBatchSize: cfg.SweepBatchSize,
	})
	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start report worker", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := w.Stop(shutdownCtx); err != nil {
		logger.Error("Worker shutdown error", "error", err)
	}
	cancel()

	logger.Info("Worker stopped")
}
