package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blulok/blulok-cloud/internal/logger"
	"github.com/blulok/blulok-cloud/pkg/access"
	"github.com/blulok/blulok-cloud/pkg/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the BluLok server",
	Long: `Start the BluLok server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/blulok/config.yaml.

Examples:
  # Start with default config location
  blulok start

  # Start with custom config file
  blulok start --config /etc/blulok/config.yaml

  # Start with environment variable overrides
  BLULOK_LOGGING_LEVEL=DEBUG blulok start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}

	logger.Info("configuration loaded",
		"environment", cfg.Environment,
		"database", cfg.Database.Type,
		"api_port", cfg.API.Port,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	core, err := access.NewCore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("server is running, press Ctrl+C to stop")
	return core.Run(ctx)
}
