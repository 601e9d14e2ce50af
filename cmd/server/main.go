// Package main is the entry point for the stardylog API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (env vars, an optional .env file, flags)
// 2. Create dependencies (logger, server)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/auth, etc.).
//
// COMMANDS (cobra):
//
//	server               same as `server serve`
//	server serve         run the HTTP API
//	server migrate       apply PostgreSQL migrations (up, down, version)
//	server healthcheck   probe /health, for container health checks
//	server token         mint a development token signed with JWT_SECRET
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stardylog/backend/internal/config"
	"github.com/stardylog/backend/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags every subcommand sees.
type globalOptions struct {
	envFile string
}

// load reads configuration and installs the process-wide logger writing to
// logOut. Commands whose stdout is their result log to stderr.
func (o *globalOptions) load(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger(logOut)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	serve := newServeCommand(opts)
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "stardylog API server",
		Long:          "The HTTP API behind the stardylog study-time tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file; real environment variables take precedence")

	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newHealthcheckCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(os.Stdout)
			if err != nil {
				return err
			}

			// Ctrl+C and SIGTERM cancel ctx; Start then shuts down gracefully.
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Start(ctx)
		},
	}
}

// commandContext returns cmd's context, or Background when cobra was run
// without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
