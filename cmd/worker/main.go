// Package main provides the entry point for the full-text acquisition Temporal worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/fulltext-acquisition-service/internal/app"
	"github.com/helixir/fulltext-acquisition-service/internal/config"
	"github.com/helixir/fulltext-acquisition-service/internal/observability"
	httpserver "github.com/helixir/fulltext-acquisition-service/internal/server/http"
	"github.com/helixir/fulltext-acquisition-service/internal/temporal"
	"github.com/helixir/fulltext-acquisition-service/internal/temporal/activities"
	"github.com/helixir/fulltext-acquisition-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("fulltext-acquisition worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Sessions are recorded in PostgreSQL; events go to Kafka when enabled.
	stack, err := app.Build(ctx, cfg, app.Options{
		Database: true,
		Events:   true,
		Metrics:  metrics,
	}, logger)
	if err != nil {
		return fmt.Errorf("build acquisition stack: %w", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release acquisition stack")
		}
	}()

	missing, err := app.UnregisteredPriority(cfg, stack.Registry)
	if err != nil {
		return err
	}
	for _, name := range missing {
		logger.Warn().Str("source", string(name)).Msg("source in priority has no adapter and will be skipped")
	}

	clientCfg := temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
		Logger:    observability.NewTemporalLogger(logger),
	}
	temporalClient, err := temporal.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	acqClient := temporal.NewAcquisitionClient(temporalClient, clientCfg)
	defer acqClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	manager, err := temporal.NewWorkerManager(temporalClient, temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue))
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}
	manager.RegisterWorkflow(workflows.AcquisitionWorkflow)
	manager.RegisterWorkflow(workflows.BatchAcquisitionWorkflow)
	manager.RegisterActivity(activities.NewAcquisitionActivities(stack.Service))

	opsServer := httpserver.NewServer(httpserver.Config{
		Address:        cfg.Server.HTTPAddress(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, stack.DB, map[string]httpserver.Checker{
		"temporal": acqClient.Health,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("address", cfg.Server.HTTPAddress()).Msg("ops HTTP server listening")
		return opsServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return opsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info().Str("task_queue", manager.TaskQueue()).Msg("starting temporal worker")
		return manager.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}
	logger.Info().Msg("worker stopped")
	return nil
}
