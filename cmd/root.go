package cmd

import (
	"fmt"

	"netpilot/internal/pkg/config"
	"netpilot/internal/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:          "netpilot",
	Short:        "netpilot detects network hardware and configures its drivers",
	SilenceUsage: true,
}

// loadConfig loads and validates the configuration and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	logging.InitLogger(cfg.Logging)
	return cfg, nil
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "f", "", "Path to config file (YAML)")
}
