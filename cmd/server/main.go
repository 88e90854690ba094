// Package main provides the entry point for the acquisition request server. It consumes
// acquisition requests from Kafka and starts one Temporal workflow per request.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/fulltext-acquisition-service/internal/config"
	"github.com/helixir/fulltext-acquisition-service/internal/events"
	"github.com/helixir/fulltext-acquisition-service/internal/observability"
	httpserver "github.com/helixir/fulltext-acquisition-service/internal/server/http"
	"github.com/helixir/fulltext-acquisition-service/internal/temporal"
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
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("fulltext-acquisition server starting")

	if !cfg.Kafka.Enabled {
		return errors.New("kafka must be enabled to consume acquisition requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	listener := events.NewRequestListener(events.ListenerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.RequestsTopic,
		GroupID: cfg.Kafka.GroupID,
	}, acqClient, logger)
	defer func() {
		if err := listener.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close request listener")
		}
	}()

	opsServer := httpserver.NewServer(httpserver.Config{
		Address:        cfg.Server.HTTPAddress(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, nil, map[string]httpserver.Checker{
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
		logger.Info().
			Str("topic", cfg.Kafka.RequestsTopic).
			Str("group_id", cfg.Kafka.GroupID).
			Msg("request listener started")
		if err := listener.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("request listener: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
