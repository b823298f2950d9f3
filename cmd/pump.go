package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiretap/wiretap/internal/control"
	"github.com/wiretap/wiretap/internal/gesture"
)

var (
	pumpWidth  int
	pumpHeight int
)

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Classify a getevent stream into gesture intents",
	Long: `Pump reads a raw getevent stream from stdin, classifies completed
touches into clicks and swipes, and delivers each one to the daemon's
control socket.

Coordinates are scaled from the digitizer range onto the given screen
dimensions. Touches that are neither a click nor a swipe are dropped.

Examples:
  adb shell getevent /dev/input/event2 | wiretap pump --width 1080 --height 2400`,
	Args: cobra.NoArgs,
	RunE: runPump,
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(pumpCmd)

	pumpCmd.Flags().IntVar(&pumpWidth, "width", 1080, "screen width in pixels")
	pumpCmd.Flags().IntVar(&pumpHeight, "height", 2400, "screen height in pixels")
}

func runPump(_ *cobra.Command, _ []string) error {
	classifier := gesture.NewClassifier(pumpWidth, pumpHeight, gesture.DefaultThresholds(),
		func(sig control.GestureSignal) {
			intent := control.Intent{Kind: control.KindGesture, Gesture: &sig}
			if err := control.Send(socketFlag, intent); err != nil {
				logger.Warn("failed to deliver gesture intent", zap.Error(err))
				return
			}
			logger.Debug("gesture delivered",
				zap.String("type", string(sig.Type)),
				zap.Int("x", sig.X), zap.Int("y", sig.Y))
		})
	return classifier.Run(os.Stdin)
}
