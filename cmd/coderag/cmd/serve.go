package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderag/engine/internal/config"
	"github.com/coderag/engine/internal/logging"
	"github.com/coderag/engine/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var localBackend bool
	var localDim int
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP stdio server",
		Long: `Start the MCP server over stdio, exposing the search and
submit_feedback tools to an editor or agent integration.

MCP requires stdout to carry only JSON-RPC traffic, so this command
never sends logs to stderr either; diagnostics always go to
~/.coderag/logs/, at debug level with --debug and info level otherwise.`,
		// Overrides the root command's PersistentPreRunE: generic debug
		// logging writes to stderr, which would corrupt the JSON-RPC
		// stream on stdout's neighboring file descriptor in some
		// terminal/editor setups that merge the two.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level := "info"
			if debugMode {
				level = "debug"
			}
			cleanup, err := logging.SetupMCPModeWithLevel(level)
			if err != nil {
				return fmt.Errorf("failed to setup MCP-safe logging: %w", err)
			}
			loggingCleanup = cleanup
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			dim := 0
			if localBackend {
				dim = localDim
			}
			return runServe(cmd.Context(), configDir, dim)
		},
	}

	cmd.Flags().BoolVar(&localBackend, "local-backend", false, "Use the in-process reference backend instead of an external HTTP backend")
	cmd.Flags().IntVar(&localDim, "local-dimension", 1536, "Vector dimension for --local-backend")
	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory to resolve project configuration from")

	return cmd
}

func runServe(ctx context.Context, configDir string, localDim int) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.Default()

	eng, err := buildEngine(cfg, localDim, logger)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("error during shutdown", slog.String("error", err.Error()))
		}
	}()

	srv, err := mcp.NewServer(eng.coordinator, eng.feedback, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build MCP server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tick := time.Duration(cfg.Learning.TickSeconds) * time.Second
	if tick <= 0 {
		tick = 5 * time.Minute
	}
	flushTicker := time.NewTicker(tick)
	defer flushTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-flushTicker.C:
				if err := eng.feedback.Flush(); err != nil {
					slog.Warn("periodic feedback flush failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	if err := srv.Serve(ctx, cfg.Server.Transport); err != nil {
		return err
	}
	return srv.Close()
}
