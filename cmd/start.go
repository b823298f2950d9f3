package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wiretap/wiretap/internal/control"
)

var startGoal string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Arm the recorder for a new episode",
	Long: `Start arms the recorder with a goal description.

The episode does not open immediately: the daemon waits for the next
home-screen observation, so every recording begins from the launcher.

Examples:
  wiretap start --goal "Connect to the office wifi"`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVarP(&startGoal, "goal", "g", "", "goal description for the episode (required)")
	startCmd.MarkFlagRequired("goal")
}

func runStart(_ *cobra.Command, _ []string) error {
	intent := control.Intent{Kind: control.KindStartRecording, Goal: startGoal}
	if err := control.Send(socketFlag, intent); err != nil {
		return fmt.Errorf("failed to deliver start intent: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ recorder armed: %s\n", startGoal)
	return nil
}
