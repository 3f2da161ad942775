// =============================================================================
// Peilbesluit to WIS - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (peilbesluit)
//   ├── processCmd (peilbesluit process)
//   ├── validateCmd (peilbesluit validate)
//   └── versionCmd (peilbesluit version)
//
// CONFIGURATION:
//   The root command owns the flags every command shares (--config,
//   --env-file, --verbose). Commands that touch data call setup() to load
//   the configuration and build the logger.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/config"
	"github.com/hdsr-mid/peilbesluit-to-wis/pkg/logger"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the YAML configuration file.
var cfgFile string

// envFile holds the path to an optional .env file.
var envFile string

// verbose enables debug output on the console.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "peilbesluit",
	Short: "Peilbesluit to WIS - Convert water level decisions to FEWS-PI timeseries",
	Long: `peilbesluit converts a peilbesluit export (one row per area and validity
window) into a FEWS-PI timeseries XML for import into WIS.

For every area five series are written: the peilbesluitpeil and its first and
second lower and upper bounds. Rows that fail validation exclude their whole
area and are reported in csv_with_errors.csv.

Example Usage:
  peilbesluit process                        # Convert the newest export in input_dir
  peilbesluit process --file export.csv      # Convert a specific file
  peilbesluit validate --file export.csv     # Only check the export
  peilbesluit process --config ./prod.yaml   # Use a custom configuration file`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the YAML configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"Path to a .env file with PEILBESLUIT_* overrides (ignored when absent)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug output on the console",
	)
}

// setup loads the configuration and builds the logger for a command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Verbose: verbose,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}
