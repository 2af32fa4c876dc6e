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

	httpadapter "github.com/pldubois/ragdoc/internal/adapters/http"
	"github.com/pldubois/ragdoc/internal/bootstrap"
	"github.com/pldubois/ragdoc/internal/config"
	"github.com/pldubois/ragdoc/internal/observability/logging"
	"github.com/pldubois/ragdoc/internal/observability/metrics"
)

const service = "api"

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

	serverMetrics := metrics.NewHTTPServerMetrics(service)
	router := httpadapter.NewRouter(
		httpadapter.Config{
			Service:          service,
			RateLimitRPS:     cfg.APIRateLimitRPS,
			RateLimitBurst:   cfg.APIRateLimitBurst,
			MaxInFlight:      cfg.APIMaxInFlight,
			BackpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		},
		app.IngestUC,
		app.QueryUC,
		app.Repo,
		serverMetrics,
	)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
