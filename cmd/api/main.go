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

	httpadapter "github.com/kirillkom/kakeibo/internal/adapters/http"
	"github.com/kirillkom/kakeibo/internal/bootstrap"
	"github.com/kirillkom/kakeibo/internal/config"
	"github.com/kirillkom/kakeibo/internal/observability/logging"
	"github.com/kirillkom/kakeibo/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// In-process runs outlive the signal context so Close can drain them.
	app.StartWorkers(context.WithoutCancel(ctx))
	if err := app.Sweeper.Start(); err != nil {
		logger.Error("sweeper_start_failed", "error", err)
		os.Exit(1)
	}
	defer func() { <-app.Sweeper.Stop().Done() }()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(cfg, app.StatementUC, app.StatusUC, app.ProfileUC, app.LedgerUC).
		WithMetrics(httpMetrics, metrics.Handler(httpMetrics.Gatherer(), app.WorkerMetrics.Gatherer())).
		Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "job_dispatch", cfg.JobDispatch)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
