package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"timematch/internal/config"
	"timematch/internal/logging"
	"timematch/internal/version"
)

var (
	// configFlag is the CLI --config flag value
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "timematch",
	Short: "timematch - reconcile activity tracking with projects and commits",
	Long: `timematch reconciles application-usage telemetry (Timing exports) against
project and ticket identifiers, producing proposed calendar time entries with
confidence scores, corroborated by git commit history.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("timematch version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Configuration file (default: "+config.DefaultConfigFile+")")
}

// mustLoadConfig loads and validates the configuration, printing the full
// list of validation problems before exiting
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		fmt.Fprintln(os.Stderr, "Hint: run 'timematch init' to create a template configuration")
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:")
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	return cfg
}

// newLogger builds the logger from the loaded configuration
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.ParseFormat(cfg.Logging.Format),
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
}
