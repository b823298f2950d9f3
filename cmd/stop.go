package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wiretap/wiretap/internal/control"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Close the open episode",
	Long: `Stop closes the open episode and flushes its metadata.

A stop while the daemon is idle is accepted and ignored.

Examples:
  wiretap stop`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(stopCmd)
}

func runStop(_ *cobra.Command, _ []string) error {
	intent := control.Intent{Kind: control.KindStopRecording}
	if err := control.Send(socketFlag, intent); err != nil {
		return fmt.Errorf("failed to deliver stop intent: %w", err)
	}
	fmt.Fprintln(os.Stderr, "✓ recording stopped")
	return nil
}
