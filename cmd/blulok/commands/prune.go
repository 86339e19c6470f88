package commands

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/blulok/blulok-cloud/internal/logger"
	"github.com/blulok/blulok-cloud/pkg/access/denylist"
	"github.com/blulok/blulok-cloud/pkg/access/store"
	"github.com/blulok/blulok-cloud/pkg/config"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired denylist entries",
	Long: `Delete expired denylist entries immediately.

The running server sweeps on its own schedule; this command is a one-shot
sweep against the configured database, useful for maintenance windows and
for deployments without a resident server.

No gateway commands are sent: locks drop expired entries on their own.`,
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close failed", "error", err)
		}
	}()

	pruner := denylist.NewPruner(st, 0, clockwork.NewRealClock(), nil)
	removed, err := pruner.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("prune sweep failed: %w", err)
	}

	fmt.Printf("Removed %d expired denylist entries\n", removed)
	return nil
}
