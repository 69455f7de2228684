// heraldd is the Herald daemon: it wires a store backend, the delivery
// engine, and the HTTP management API into one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/api"
	"github.com/heraldhq/herald/observability"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/store/memory"
	"github.com/heraldhq/herald/store/mongo"
	"github.com/heraldhq/herald/store/postgres"
	"github.com/heraldhq/herald/store/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("heraldd exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store ready", "driver", cfg.StoreDriver)

	opts := []herald.Option{
		herald.WithStore(st),
		herald.WithLogger(logger),
		herald.WithConcurrency(cfg.Concurrency),
		herald.WithPollInterval(cfg.PollInterval),
		herald.WithBatchSize(cfg.BatchSize),
		herald.WithRequestTimeout(cfg.RequestTimeout),
		herald.WithTestTimeout(cfg.TestTimeout),
		herald.WithMaxRetries(cfg.MaxRetries),
		herald.WithBackoff(cfg.InitialDelay, cfg.BackoffMultiplier, cfg.MaxDelay),
		herald.WithHistoryLimit(cfg.HistoryLimit),
	}
	if cfg.StrictCatalog {
		opts = append(opts, herald.WithStrictCatalog())
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		provider, handler, err := observability.NewPrometheusMeterProvider()
		if err != nil {
			return fmt.Errorf("metrics setup: %w", err)
		}
		opts = append(opts, herald.WithMetrics(provider))
		metricsHandler = handler
	}

	h, err := herald.New(opts...)
	if err != nil {
		return err
	}
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("start herald: %w", err)
	}

	router := chi.NewRouter()
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}
	router.Mount("/", api.NewHandler(h, logger))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("heraldd listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	h.Stop(shutdownCtx)
	return nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// openStore connects the configured backend. The SQL and document stores
// run their schema migrations before the daemon accepts traffic.
func openStore(ctx context.Context, cfg *config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "redis":
		return redis.Open(ctx, cfg.StoreDSN)
	case "postgres":
		st, err := postgres.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "mongo":
		st, err := mongo.Open(ctx, cfg.StoreDSN, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return memory.New(), nil
	}
}
