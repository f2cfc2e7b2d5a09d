package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ballotbox/internal/cli/config"
	"github.com/leapstack-labs/ballotbox/internal/cli/output"
	intconfig "github.com/leapstack-labs/ballotbox/internal/config"
	"github.com/leapstack-labs/ballotbox/internal/history"
	"github.com/leapstack-labs/ballotbox/internal/rpc"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Client   *rpc.Client
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a backend client and a
// renderer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	mode := output.Mode(cfg.Output)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Client:   client,
		Renderer: r,
	}, nil
}

// NewCommandContextWithoutClient creates a CommandContext without a
// backend client. Useful for commands that only read local state.
func NewCommandContextWithoutClient(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.Output)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration, or the defaults when no
// configuration has been loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return intconfig.Default()
}

func newClient(cfg *config.Config, logger *slog.Logger) (*rpc.Client, error) {
	client, err := rpc.NewClient(rpc.Config{
		URL:      cfg.Backend.URL,
		Timeout:  cfg.Backend.Timeout,
		Format:   cfg.Backend.Format,
		PageSize: cfg.Backend.PageSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return client, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (*history.Store, error) {
	if cfg.History.Driver == history.DriverSQLite && cfg.History.DSN != ":memory:" {
		// Ensure history directory exists
		dir := filepath.Dir(cfg.History.DSN)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
	}

	store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}
