package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pldubois/ragdoc/internal/bootstrap"
	"github.com/pldubois/ragdoc/internal/config"
	"github.com/pldubois/ragdoc/internal/observability/logging"
	"github.com/pldubois/ragdoc/internal/observability/metrics"
)

const service = "worker"

// processTimeout bounds a single document end to end, including
// extraction, embedding, and index persistence.
const processTimeout = 5 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWithOverlay(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	workerMetrics.SetIndexSize(app.Index.Len())

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, documentID)
		workerMetrics.FinishDocument(service, time.Since(start), processErr)

		if processErr == nil {
			if doc, err := app.Repo.GetByID(processCtx, documentID); err == nil {
				workerMetrics.ObserveChunks(service, doc.ChunkCount)
			}
			workerMetrics.SetIndexSize(app.Index.Len())
		}
		return processErr
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
