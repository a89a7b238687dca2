// Command capmeshd runs the CapMesh HTTP daemon: it loads configuration,
// fills the credential pool, registers the vendor adapters and serves the
// capability API with its SSE status stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/capmesh"
	"github.com/hupe1980/capmesh/config"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/executor"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/provider/anthropic"
	"github.com/hupe1980/capmesh/provider/openai"
	"github.com/hupe1980/capmesh/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		addr       string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:           "capmeshd",
		Short:         "CapMesh capability orchestration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return run(cmd.Context(), cfg, debug)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to capmesh.yaml (default: ./capmesh.yaml, $HOME/capmesh.yaml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override, e.g. :8080")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose request logging")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, debug bool) error {
	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, cfg.Logging.AddSource)

	mesh := capmesh.New(func(o *capmesh.Options) {
		o.Policy = executor.Policy{
			MaxCredentialAttemptsPerHandler: cfg.Executor.MaxCredentialAttempts,
			MaxHandlerRetries:               cfg.Executor.MaxHandlerRetries,
			BackoffSchedule:                 cfg.Executor.Backoff,
			AttemptTimeout:                  cfg.Executor.AttemptTimeout,
		}
		o.CooldownDuration = cfg.Pool.Cooldown
		o.ExhaustThreshold = cfg.Pool.ExhaustThreshold
		o.HistoryLimit = cfg.Bus.HistoryLimit
		o.MaxSessions = cfg.Bus.MaxSessions
		o.SessionTTL = cfg.Bus.SessionTTL
		o.Heartbeat = cfg.Stream.Heartbeat
		o.StreamBufferSize = cfg.Stream.BufferSize
		o.Logger = logger
	})

	mesh.RegisterAdapter(openai.New())
	mesh.RegisterAdapter(anthropic.New())

	for _, h := range cfg.Handlers {
		mesh.RegisterHandler(core.Handler{
			ID:           h.ID,
			ProviderID:   h.Provider,
			Capabilities: h.Capabilities,
			Priority:     h.Priority,
		})
	}

	if cfg.Pool.CredentialsFile != "" {
		n, err := mesh.LoadCredentials(cfg.Pool.CredentialsFile)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		logger.Info("credentials loaded", "file", cfg.Pool.CredentialsFile, "count", n)
	}

	srv := server.New(mesh.Pool(), mesh.Bus(), mesh.Executor(), mesh.Bridge(), mesh.Handlers(), func(o *server.Options) {
		o.Logger = logger
		o.Debug = debug
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("capmeshd listening", "addr", cfg.Server.Addr, "handlers", len(cfg.Handlers))
	return srv.Serve(ctx, cfg.Server.Addr)
}
