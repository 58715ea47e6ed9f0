package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"openhours/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status <business-id>",
	Short: "Print the effective availability of a business",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a, err := newApp(cfg, &logger, false)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.svc.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single reconciliation pass over all active businesses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a, err := newApp(cfg, &logger, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if bc, err := config.LoadBusinesses(cfg.BusinessesConfigPath); err == nil {
			if err := a.syncBusinesses(ctx, bc); err != nil {
				return err
			}
		} else {
			logger.Warn().Err(err).Msg("businesses config not loaded")
		}

		stats := a.svc.RunTick(ctx, time.Now())
		fmt.Printf("total=%d updated=%d unchanged=%d failed=%d skipped=%d duration=%s\n",
			stats.Total, stats.Updated, stats.Unchanged, stats.Failed, stats.Skipped, stats.Duration)
		if stats.Failed > 0 {
			return fmt.Errorf("%d businesses failed to reconcile", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, tickCmd)
}
