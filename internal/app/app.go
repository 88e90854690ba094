// Package app assembles the acquisition stack from configuration. The worker, the
// request server and the command-line tool share it.
package app

import (
	"context"
	"errors"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/helixir/fulltext-acquisition-service/internal/acquisition"
	"github.com/helixir/fulltext-acquisition-service/internal/config"
	"github.com/helixir/fulltext-acquisition-service/internal/database"
	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/events"
	"github.com/helixir/fulltext-acquisition-service/internal/fetch"
	"github.com/helixir/fulltext-acquisition-service/internal/identifier"
	"github.com/helixir/fulltext-acquisition-service/internal/landing"
	"github.com/helixir/fulltext-acquisition-service/internal/observability"
	"github.com/helixir/fulltext-acquisition-service/internal/repository"
	"github.com/helixir/fulltext-acquisition-service/internal/skipstore"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/arxiv"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/biorxiv"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/core"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/crossref"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/doiredirect"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/institutional"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/libgen"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/openalex"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/pmc"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/scihub"
	"github.com/helixir/fulltext-acquisition-service/internal/sources/unpaywall"
	"github.com/helixir/fulltext-acquisition-service/internal/storage"
	"github.com/helixir/fulltext-acquisition-service/internal/validate"
	"github.com/helixir/fulltext-acquisition-service/internal/waterfall"
)

// Options selects the optional infrastructure Build connects.
type Options struct {
	// Database connects PostgreSQL and records sessions in it.
	Database bool
	// Events publishes outcome events when Kafka is enabled in the configuration.
	Events bool
	// Metrics is passed to the orchestrator and the publisher. Nil disables recording.
	Metrics *observability.Metrics
}

// Stack is a fully wired acquisition service plus the resources it holds.
type Stack struct {
	Registry     *sources.Registry
	Orchestrator *waterfall.Orchestrator
	Service      *acquisition.Service

	// DB and Sessions are nil unless Options.Database was set.
	DB       *database.DB
	Sessions *repository.PgSessionRepository

	logger  zerolog.Logger
	closers []func() error
}

// Build creates the acquisition stack described by cfg. On error every resource
// opened so far is released.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (_ *Stack, err error) {
	s := &Stack{logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Registry = BuildRegistry(cfg, logger)
	s.Orchestrator, err = BuildOrchestrator(cfg, s.Registry, opts.Metrics, logger)
	if err != nil {
		return nil, err
	}

	svcOpts := []acquisition.Option{acquisition.WithLogger(logger)}

	skips, err := s.openSkipStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svcOpts = append(svcOpts, acquisition.WithSkipStore(skips))

	sink, err := s.openSink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svcOpts = append(svcOpts, acquisition.WithSink(sink))

	if opts.Database {
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.DB = db
		s.closers = append(s.closers, func() error { db.Close(); return nil })

		if cfg.Database.MigrationAutoRun {
			if err := migrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
				return nil, err
			}
		}

		s.Sessions = repository.NewPgSessionRepository(db)
		svcOpts = append(svcOpts, acquisition.WithSessionRepository(s.Sessions))
	}

	if opts.Events && cfg.Kafka.Enabled {
		pub := events.NewKafkaPublisher(events.PublisherConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.EventsTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, opts.Metrics, logger)
		s.closers = append(s.closers, pub.Close)
		svcOpts = append(svcOpts, acquisition.WithPublisher(pub))
		logger.Info().Str("topic", cfg.Kafka.EventsTopic).Msg("event publisher enabled")
	}

	s.Service = acquisition.NewService(
		identifier.NewResolver(identifier.Config{AuthorLimit: cfg.Acquisition.AuthorLimit}),
		s.Orchestrator,
		svcOpts...,
	)
	return s, nil
}

// Close releases the stack's resources in reverse order of acquisition.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// BuildOrchestrator wires the waterfall to registry with the configured fetch and
// validation bounds.
func BuildOrchestrator(cfg *config.Config, registry *sources.Registry, metrics *observability.Metrics, logger zerolog.Logger) (*waterfall.Orchestrator, error) {
	priority, err := cfg.Acquisition.PriorityNames()
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  int64(cfg.Acquisition.PDFMaxBytes),
		UserAgent: cfg.Fetch.UserAgent,
	})
	validator := validate.New(validate.Config{
		MinPDFBytes: cfg.Acquisition.PDFMinBytes,
		MaxPDFBytes: cfg.Acquisition.PDFMaxBytes,
		DeepInspect: cfg.Acquisition.DeepInspect,
	})

	opts := []waterfall.Option{waterfall.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, waterfall.WithMetrics(metrics))
	}

	return waterfall.New(registry, fetcher, validator, landing.NewExtractor(), waterfall.Config{
		Priority:       priority,
		AdapterTimeout: cfg.Acquisition.AdapterTimeout,
		SessionTimeout: cfg.Acquisition.SessionTimeout,
		LandingHops:    cfg.Acquisition.LandingHops,
		Concurrency:    cfg.Acquisition.Concurrency,
	}, opts...), nil
}

// BuildRegistry registers every enabled source. Mirror sources without a URL are
// skipped with a warning.
func BuildRegistry(cfg *config.Config, logger zerolog.Logger) *sources.Registry {
	registry := sources.NewRegistry()
	src := cfg.Sources

	register := func(a sources.Adapter) {
		registry.MustRegister(a)
		logger.Info().Str("source", string(a.Name())).Msg("registered source")
	}

	if src.Institutional.Enabled && src.Institutional.ProxyPrefix != "" {
		register(institutional.New(institutional.Config{
			ProxyPrefix: src.Institutional.ProxyPrefix,
			ProbeURL:    src.Institutional.BaseURL,
			Timeout:     src.Institutional.Timeout,
		}))
	}

	if src.PMC.Enabled {
		register(pmc.New(pmc.Config{
			EuropePMCURL: src.PMC.BaseURL,
			Email:        src.PMC.Email,
			PreferXML:    src.PMC.PreferXML,
			Timeout:      src.PMC.Timeout,
			RateLimit:    src.PMC.RateLimit,
		}))
	}

	if src.Unpaywall.Enabled {
		if src.Unpaywall.Email == "" {
			logger.Warn().Msg("unpaywall enabled without a contact email; requests may be rejected")
		}
		register(unpaywall.New(unpaywall.Config{
			BaseURL:   src.Unpaywall.BaseURL,
			Email:     src.Unpaywall.Email,
			Timeout:   src.Unpaywall.Timeout,
			RateLimit: src.Unpaywall.RateLimit,
		}))
	}

	if src.CORE.Enabled {
		register(core.New(core.Config{
			BaseURL:   src.CORE.BaseURL,
			APIKey:    src.CORE.APIKey,
			Timeout:   src.CORE.Timeout,
			RateLimit: src.CORE.RateLimit,
		}))
	}

	if src.OpenAlex.Enabled {
		register(openalex.New(openalex.Config{
			BaseURL:   src.OpenAlex.BaseURL,
			Email:     src.OpenAlex.Email,
			Timeout:   src.OpenAlex.Timeout,
			RateLimit: src.OpenAlex.RateLimit,
		}))
	}

	if src.Crossref.Enabled {
		register(crossref.New(crossref.Config{
			BaseURL:   src.Crossref.BaseURL,
			Email:     src.Crossref.Email,
			Timeout:   src.Crossref.Timeout,
			RateLimit: src.Crossref.RateLimit,
		}))
	}

	if src.BioRxiv.Enabled {
		register(biorxiv.New(biorxiv.Config{
			APIURL:    src.BioRxiv.BaseURL,
			Timeout:   src.BioRxiv.Timeout,
			RateLimit: src.BioRxiv.RateLimit,
		}))
	}

	if src.ArXiv.Enabled {
		register(arxiv.New(arxiv.Config{
			APIURL:    src.ArXiv.BaseURL,
			Timeout:   src.ArXiv.Timeout,
			RateLimit: src.ArXiv.RateLimit,
		}))
	}

	if src.SciHub.Enabled {
		n := 0
		for _, mirror := range src.SciHub.Mirrors {
			if mirror == "" {
				continue
			}
			n++
			register(scihub.New(scihub.Config{
				Mirror:    n,
				BaseURL:   mirror,
				Timeout:   src.SciHub.Timeout,
				RateLimit: src.SciHub.RateLimit,
			}))
		}
		if n == 0 {
			logger.Warn().Msg("scihub enabled without mirrors; source not registered")
		}
	}

	if src.LibGen.Enabled {
		if src.LibGen.BaseURL == "" {
			logger.Warn().Msg("libgen enabled without base_url; source not registered")
		} else {
			register(libgen.New(libgen.Config{
				BaseURL:   src.LibGen.BaseURL,
				Timeout:   src.LibGen.Timeout,
				RateLimit: src.LibGen.RateLimit,
			}))
		}
	}

	if src.DOIRedirect.Enabled {
		register(doiredirect.New(doiredirect.Config{ResolverURL: src.DOIRedirect.BaseURL}))
	}

	if len(registry.Names()) == 0 {
		logger.Warn().Msg("no sources enabled; every acquisition will be exhausted")
	}
	return registry
}

// UnregisteredPriority returns the configured priority names with no adapter behind them.
func UnregisteredPriority(cfg *config.Config, registry *sources.Registry) ([]domain.SourceName, error) {
	priority, err := cfg.Acquisition.PriorityNames()
	if err != nil {
		return nil, err
	}
	_, missing := registry.Ordered(priority)
	return missing, nil
}

func (s *Stack) openSkipStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (skipstore.Store, error) {
	if !cfg.Redis.Enabled {
		return skipstore.NewMemoryStore(cfg.Acquisition.SkipTTL), nil
	}

	store, rdb, err := skipstore.Dial(ctx, skipstore.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.Acquisition.SkipTTL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	s.closers = append(s.closers, rdb.Close)
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis skip store connected")
	return store, nil
}

func (s *Stack) openSink(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Sink, error) {
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create GCS client: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		return storage.NewGCSSink(client, cfg.Storage.Bucket, cfg.Storage.Prefix, logger), nil
	default:
		sink, err := storage.NewFileSink(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("create file sink: %w", err)
		}
		return sink, nil
	}
}

func migrateUp(db *database.DB, path string, logger zerolog.Logger) error {
	m, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
