// Package main provides the document conversion API server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/spherical/doc-converter/cmd/docconvert-api/handlers"
	"github.com/spherical/doc-converter/internal/artifact"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/observability"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if err := os.MkdirAll(cfg.Storage.ScratchDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.Storage.ScratchDir).Msg("Cannot create scratch directory")
	}

	var (
		metrics        observability.Metrics = observability.Noop{}
		metricsHandler http.Handler
	)
	if cfg.Observability.MetricsEnabled {
		prom := observability.NewProm("docconvert")
		metrics = prom
		metricsHandler = prom.Handler()
	}

	engines := convert.NewEngines(cfg.Conversion)
	for _, e := range []handlers.Engine{engines.Office, engines.OCR} {
		if !e.Available() {
			logger.Warn().Str("engine", e.Name()).Msg("Engine not found; strategies using it will fall through")
		}
	}
	pipeline := convert.NewDefaultPipeline(cfg, engines, logger, metrics)

	storeOpts := []artifact.Option{
		artifact.WithLogger(logger),
		artifact.WithObserver(artifact.NewMetricsObserver(metrics)),
	}
	var publisher *artifact.RedisPublisher
	if cfg.Events.Enabled {
		publisher, err = artifact.NewRedisPublisher(cfg.Events.Redis, cfg.Events.Channel, logger)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Events.Redis.Addr).Msg("Artifact events disabled")
		} else {
			storeOpts = append(storeOpts, artifact.WithObserver(publisher))
		}
	}
	store := artifact.NewStore(storeOpts...)

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("scratch_dir", cfg.Storage.ScratchDir).
		Bool("events", publisher != nil).
		Msg("Starting document conversion API")

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		artifact.NewReaper(store, cfg.Storage.ReapInterval, logger).Run(reaperCtx)
	}()

	router := NewRouter(logger, Dependencies{
		Converter: pipeline,
		Store:     store,
		Engines:   []handlers.Engine{engines.Office, engines.OCR},
		Metrics:   metricsHandler,
	}, cfg)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server error")
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	stopReaper()
	<-reaperDone

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}

	logger.Info().Int("orphaned_artifacts", store.Len()).Msg("Server stopped")
}
