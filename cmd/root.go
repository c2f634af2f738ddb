// Package cmd provides the argus command-line interface.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"argus/bootstrap"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	outputJSON bool
	configFile string
	dataDir    string
	noColor    bool
	quiet      bool
)

const (
	// defaultTimeout bounds one CLI operation; correlation passes have
	// their own, shorter budget
	defaultTimeout = 5 * time.Minute
	// bootLogLevel is used until the configured level is known
	bootLogLevel = "error"
)

var (
	app    *bootstrap.App
	logger *zap.Logger
)

// NewRootCmd creates the argus command with all subcommands
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Search and correlate network security entities",
		Long: `Argus validates and runs field queries against flows, alarms, rules, devices
and target lists, and correlates the records of one entity type with those
of others.

Entity collections are read from <data-dir>/<entity_type>.json or .msgpack.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	// Flags are reset on every construction so repeated runs in one
	// process start from their defaults
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: argus.yaml in . or ./config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the entity collections (overrides source.data_dir)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newCorrelateCmd())
	rootCmd.AddCommand(newSuggestCmd())
	rootCmd.AddCommand(newFieldsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// setup loads the configuration and wires the application
func setup(cmd *cobra.Command) error {
	if noColor {
		color.NoColor = true
	}
	stderr := cmd.ErrOrStderr()

	_, bootSugar, err := bootstrap.NewLogger(bootLogLevel, stderr)
	if err != nil {
		return err
	}

	cfg, err := bootstrap.InitConfig(configFile, bootSugar)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Source.DataDir = dataDir
	}

	l, sugar, err := bootstrap.NewLogger(cfg.Logging.Level, stderr)
	if err != nil {
		return err
	}

	a, err := bootstrap.NewApp(cfg, sugar)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	app, logger = a, l
	return nil
}

// outputAsJSON writes data as indented JSON
func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
