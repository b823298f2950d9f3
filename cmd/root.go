// Package cmd implements the wiretap Cobra command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wiretap/wiretap/internal/config"
)

// Version, Commit, and Date are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	socketFlag  string
	verboseFlag bool

	// logger is built once in the persistent pre-run and shared by all
	// commands.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wiretap",
	Short: "Record user interactions into UI automation episodes",
	Long: `wiretap - Record user interactions into UI automation episodes

The serve command runs the recording daemon: it watches structural UI
events and raw touch gestures, arbitrates them into a single action per
physical interaction, and persists numbered episode directories with a
screenshot and two accessibility-tree traversal documents per step.

The remaining commands are thin clients of the daemon's control socket,
plus an offline validator for recorded datasets.

Examples:
  # Run the recording daemon
  wiretap serve --config wiretap.yaml

  # Arm a recording; it opens on the next home-screen observation
  wiretap start --goal "Connect to the office wifi"

  # Deliver a raw gesture observed on the touch device
  wiretap gesture --type CLICK --x 540 --y 1200

  # Close the open episode
  wiretap stop

  # Check a recorded dataset
  wiretap validate dataset`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		logger, err = buildLogger(verboseFlag)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits
	rootCmd.SetVersionTemplate(fmt.Sprintf("wiretap version {{.Version}} (commit: %s, built: %s)\n", Commit, Date))

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", config.Default().Socket,
		"control socket path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"enable debug logging")
}

// buildLogger configures zap for the process: JSON in pipelines, console
// encoding on a terminal, debug level when verbose.
func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
