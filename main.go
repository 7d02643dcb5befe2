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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	database "github.com/rndhub/go-rnd-hub/app/db"
	applogger "github.com/rndhub/go-rnd-hub/app/logger"
	"github.com/rndhub/go-rnd-hub/app/observability/metrics"
	"github.com/rndhub/go-rnd-hub/app/tracer"
	"github.com/rndhub/go-rnd-hub/config"
	"github.com/rndhub/go-rnd-hub/internal/container"
	"github.com/rndhub/go-rnd-hub/internal/router"
)

func setupLogger(mode string) *slog.Logger {
	var handler slog.Handler
	if mode == "development" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func run() error {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Println("No .env file found, relying on environment")
	}

	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Mode)
	logger.Info("Starting", slog.String("mode", cfg.Mode))

	metricsHandler := tracer.InitTracingAndMetrics()
	metrics.InitAppMetrics()

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build database config: %w", err)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		return fmt.Errorf("failed to init database pool: %w", err)
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !database.WaitForDB(ctx, pool, logger) {
		return errors.New("database not reachable")
	}

	c := container.NewContainer(pool, cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(applogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(cfg.Server.Timeout))
	r.Use(middleware.Compress(5))

	router.SetupRouter(r, router.Config{
		AuthHandler:         c.AuthHandler,
		NotificationHandler: c.NotificationHandler,
		OAuthHandler:        c.OAuthHandler,
		SessionMW:           c.SessionMW,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:      r,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	metricsServer := tracer.NewMetricsServer(cfg.Handlers.Prometheus.Port, metricsHandler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("port", cfg.Server.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Metrics server listening", slog.String("port", cfg.Handlers.Prometheus.Port))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown", slog.Any("error", err))
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}
