package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"openhours/internal/config"
	"openhours/internal/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "hoursd",
	Short:         "Business availability scheduler",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", envOr("HOURSD_CONFIG_PATH", "configs/config.yaml"), "configuration file")
}

// loadConfig reads the config file and builds the process logger from it.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(cfg.Logging), nil
}
