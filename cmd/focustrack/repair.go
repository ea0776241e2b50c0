package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/focustrack/internal/config"
	"github.com/goodtune/focustrack/internal/timeconv"
	"github.com/goodtune/focustrack/internal/usage"
	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Close stray open sessions",
	Long: `Close every open session except the most recent one, the same check the
tracker runs before each sample. Useful after a crash left sessions open.`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	store, err := openStorage(cfg.Storage, timeconv.RealClock{})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	closed, err := usage.NewIntegrityChecker(store.Sessions(), logger).Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if closed == 0 {
		color.New(color.FgGreen).Fprintln(out, "✅ No stray open sessions")
		return nil
	}
	color.New(color.FgYellow, color.Bold).Fprintf(out, "⚠️  Closed %d stray open session(s)\n", closed)
	return nil
}
