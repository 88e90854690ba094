package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/fulltext-acquisition-service/internal/app"
	"github.com/helixir/fulltext-acquisition-service/internal/config"
	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/observability"
	"github.com/helixir/fulltext-acquisition-service/internal/temporal"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitExhausted   = 2 // every source failed
	ExitInterrupted = 3 // the session deadline ended the run
)

var errExhausted = errors.New("no source returned valid full text")

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errExhausted):
		return ExitExhausted
	case errors.Is(err, domain.ErrSessionDeadline):
		return ExitInterrupted
	default:
		return ExitError
	}
}

type commandContext struct {
	configFlag *string
	recordFlag *bool
	jsonFlag   *bool
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	stack *app.Stack
}

func newCommandContext(configFlag *string, recordFlag, jsonFlag, debugFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		recordFlag: recordFlag,
		jsonFlag:   jsonFlag,
		debugFlag:  debugFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			c.config, c.configErr = config.Load()
			return
		}
		c.config, c.configErr = config.LoadFile(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() zerolog.Logger {
	level := "warn"
	if *c.debugFlag {
		level = "debug"
	}
	return observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.Kitchen,
	})
}

// acquisitionStack builds the in-process stack once. Sessions are recorded in
// PostgreSQL only with --record.
func (c *commandContext) acquisitionStack(ctx context.Context) (*app.Stack, error) {
	if c.stack != nil {
		return c.stack, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	stack, err := app.Build(ctx, cfg, app.Options{Database: *c.recordFlag}, c.logger())
	if err != nil {
		return nil, err
	}
	c.stack = stack
	return stack, nil
}

func (c *commandContext) withTemporal(fn func(*temporal.AcquisitionClient) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	clientCfg := temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
		Logger:    observability.NewTemporalLogger(c.logger()),
	}
	tc, err := temporal.NewClient(clientCfg)
	if err != nil {
		return err
	}
	client := temporal.NewAcquisitionClient(tc, clientCfg)
	defer client.Close()
	return fn(client)
}

func (c *commandContext) close() error {
	if c.stack == nil {
		return nil
	}
	err := c.stack.Close()
	c.stack = nil
	return err
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var recordFlag, jsonFlag, debugFlag bool

	ctx := newCommandContext(&configFlag, &recordFlag, &jsonFlag, &debugFlag)

	rootCmd := &cobra.Command{
		Use:           "fulltext",
		Short:         "Acquire publication full text through the source waterfall",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&recordFlag, "record", false, "Record sessions in the database")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log waterfall progress to stderr")

	rootCmd.AddCommand(newAcquireCommand(ctx))
	rootCmd.AddCommand(newLocateCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newSourcesCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))

	return rootCmd
}
