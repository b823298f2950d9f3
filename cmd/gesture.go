package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wiretap/wiretap/internal/control"
)

var (
	gestureTypeFlag string
	gestureX        int
	gestureY        int
	gestureX2       int
	gestureY2       int
)

var gestureCmd = &cobra.Command{
	Use:   "gesture",
	Short: "Deliver a raw gesture to the daemon",
	Long: `Gesture delivers one raw touch gesture to the daemon.

The daemon holds the gesture for the configured delay and records it
only if no structural UI event claims the same physical interaction.
Swipes carry start and end coordinates; clicks only a position.

Examples:
  wiretap gesture --type CLICK --x 540 --y 1200
  wiretap gesture --type SWIPE_UP --x 540 --y 1800 --x2 540 --y2 600`,
	Args: cobra.NoArgs,
	RunE: runGesture,
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(gestureCmd)

	gestureCmd.Flags().StringVarP(&gestureTypeFlag, "type", "t", "",
		"gesture type: CLICK, SWIPE_LEFT, SWIPE_RIGHT, SWIPE_UP, SWIPE_DOWN (required)")
	gestureCmd.Flags().IntVar(&gestureX, "x", 0, "x coordinate (swipe start x)")
	gestureCmd.Flags().IntVar(&gestureY, "y", 0, "y coordinate (swipe start y)")
	gestureCmd.Flags().IntVar(&gestureX2, "x2", 0, "swipe end x")
	gestureCmd.Flags().IntVar(&gestureY2, "y2", 0, "swipe end y")

	gestureCmd.MarkFlagRequired("type")
	gestureCmd.MarkFlagRequired("x")
	gestureCmd.MarkFlagRequired("y")
}

func runGesture(cmd *cobra.Command, _ []string) error {
	gt, err := control.ParseGestureType(strings.ToUpper(gestureTypeFlag))
	if err != nil {
		return err
	}

	sig := control.GestureSignal{Type: gt, X: gestureX, Y: gestureY}
	if cmd.Flags().Changed("x2") {
		sig.X2 = &gestureX2
	}
	if cmd.Flags().Changed("y2") {
		sig.Y2 = &gestureY2
	}

	intent := control.Intent{Kind: control.KindGesture, Gesture: &sig}
	if err := control.Send(socketFlag, intent); err != nil {
		return fmt.Errorf("failed to deliver gesture intent: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ gesture delivered: %s\n", gt)
	return nil
}
