package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/install-orchestrator/internal/config"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

var (
	configFile string
	verbose    bool

	globalConfig *config.GlobalConfig
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "install-orchestrator",
		Short: "Downloads, verifies and installs artifacts described by request manifests",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			globalConfig = cfg

			level := cfg.Logging.Level
			if verbose {
				level = "debug"
			}
			log, err := logger.New(level)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			logger.Init(log)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to the global config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(createInstallCommand())
	rootCmd.AddCommand(createValidateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
