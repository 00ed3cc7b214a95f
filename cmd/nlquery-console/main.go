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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nlquery/nlquery/internal/config"
	"github.com/nlquery/nlquery/internal/console"
	"github.com/nlquery/nlquery/internal/observability"
	"github.com/nlquery/nlquery/internal/render"
	"github.com/nlquery/nlquery/internal/sqlgen"
	"github.com/nlquery/nlquery/internal/ui"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("nlquery-console")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	client, err := sqlgen.NewClient(sqlgen.ClientConfig{
		Endpoint: cfg.Console.Endpoint,
		APIKey:   cfg.Console.APIKey,
		Timeout:  cfg.Console.RequestTimeout,
	})
	if err != nil {
		logger.Error("invalid query service endpoint", slog.Any("error", err))
		os.Exit(1)
	}

	panel := ui.NewPanel()
	controller := console.NewController(panel, client, console.Options{
		Renderer:         render.HTML{},
		StatusClearDelay: cfg.Console.StatusClearDelay,
		Logger:           logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})
	mux.Handle("GET /v1/metrics", promhttp.Handler())
	mux.Handle("/", ui.NewHandler(controller, panel, logger))

	server := &http.Server{
		Addr: cfg.Console.Address,
		Handler: observability.Chain(mux,
			observability.TraceMiddleware,
			observability.MetricsMiddleware,
			observability.LoggingMiddleware(logger),
		),
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting console server",
			slog.String("addr", cfg.Console.Address),
			slog.String("endpoint", client.Endpoint()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down console server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("console server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
