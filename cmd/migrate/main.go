// Package main applies the acquisition database schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/fulltext-acquisition-service/internal/config"
	"github.com/helixir/fulltext-acquisition-service/internal/database"
	"github.com/helixir/fulltext-acquisition-service/internal/observability"
)

// action is one migration command selected on the command line.
type action struct {
	name string
	run  func(m *database.Migrator, logger zerolog.Logger) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "Apply all pending migrations")
	down := flag.Bool("down", false, "Roll back all migrations")
	steps := flag.Int("steps", 0, "Apply N migrations (negative rolls back)")
	version := flag.Bool("version", false, "Print the current schema version")
	force := flag.Int("force", -1, "Set the schema version without running migrations")
	path := flag.String("path", "", "Read migrations from this directory instead of the configured one")
	embedded := flag.Bool("embedded", false, "Use the migrations compiled into the binary")
	flag.Parse()

	var selected []action
	if *up {
		selected = append(selected, action{"up", func(m *database.Migrator, _ zerolog.Logger) error { return m.Up() }})
	}
	if *down {
		selected = append(selected, action{"down", func(m *database.Migrator, _ zerolog.Logger) error { return m.Down() }})
	}
	if *steps != 0 {
		n := *steps
		selected = append(selected, action{"steps", func(m *database.Migrator, _ zerolog.Logger) error { return m.Steps(n) }})
	}
	if *version {
		selected = append(selected, action{"version", func(*database.Migrator, zerolog.Logger) error { return nil }})
	}
	if *force >= 0 {
		v := *force
		selected = append(selected, action{"force", func(m *database.Migrator, _ zerolog.Logger) error { return m.Force(v) }})
	}

	switch len(selected) {
	case 0:
		flag.Usage()
		return errors.New("specify one of -up, -down, -steps N, -version, -force V")
	case 1:
	default:
		return errors.New("specify only one action at a time")
	}
	if *embedded && *path != "" {
		return errors.New("-embedded and -path are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	dir := cfg.Database.MigrationPath
	switch {
	case *embedded:
		dir = ""
	case *path != "":
		dir = *path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close migrator")
		}
	}()

	a := selected[0]
	if err := a.run(migrator, logger); err != nil {
		return fmt.Errorf("migrate %s: %w", a.name, err)
	}
	logVersion(migrator, logger)
	return nil
}

func logVersion(m *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := m.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current schema version")
}
