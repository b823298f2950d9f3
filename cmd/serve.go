package cmd

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiretap/wiretap/internal/arbiter"
	"github.com/wiretap/wiretap/internal/config"
	"github.com/wiretap/wiretap/internal/control"
	"github.com/wiretap/wiretap/internal/device"
	"github.com/wiretap/wiretap/internal/episode"
	"github.com/wiretap/wiretap/internal/framebuffer"
	"github.com/wiretap/wiretap/internal/uitree"
)

var (
	serveConfigPath string
	serveDatasetDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recording daemon",
	Long: `Serve runs the recording daemon until interrupted.

The daemon owns the frame buffer refresh loop, the control socket, and
the recording state machine. Recordings are driven entirely through the
control socket (see the start, stop, and gesture commands); each one
produces the next numbered episode directory under the dataset root.

Examples:
  wiretap serve
  wiretap serve --config wiretap.yaml
  wiretap serve --dataset /data/episodes --socket /tmp/wiretap.sock`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "configuration YAML file")
	serveCmd.Flags().StringVarP(&serveDatasetDir, "dataset", "d", "", "dataset root directory (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if serveConfigPath != "" {
		var err error
		cfg, err = config.LoadFile(serveConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if serveDatasetDir != "" {
		cfg.DatasetDir = serveDatasetDir
	}
	if cmd.Flags().Changed("socket") {
		cfg.Socket = socketFlag
	}

	sim := device.NewSim(launcherScreen(cfg), cfg.Launcher.Package)
	defer sim.Close()

	buffer := framebuffer.New(sim, sim, logger)
	episodes, err := episode.NewManager(cfg.DatasetDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open dataset directory: %w", err)
	}
	rec := arbiter.New(cfg, buffer, episodes, sim.Events(), logger)

	srv, err := control.NewServer(cfg.Socket, rec.HandleIntent, logger)
	if err != nil {
		return fmt.Errorf("failed to open control socket: %w", err)
	}
	defer srv.Close() //nolint:errcheck // listener teardown on exit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go buffer.RunRefreshLoop(ctx, cfg.Timing.RefreshInterval.Std())
	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Error("control listener failed", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("recording daemon ready",
		zap.String("socket", cfg.Socket),
		zap.String("dataset", cfg.DatasetDir))
	return rec.Run(ctx)
}

// launcherScreen is the home screen the simulated device starts on. Real
// device backends plug in through the device provider interfaces instead.
func launcherScreen(cfg *config.Config) device.Screen {
	return device.Screen{
		Width:  1080,
		Height: 2400,
		Fill:   color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xff},
		Windows: []uitree.Window{{
			Bounds:  uitree.Rect{Right: 1080, Bottom: 2400},
			Active:  true,
			Focused: true,
			Type:    uitree.WindowTypeApplication,
			Root: &uitree.Node{
				Bounds:      uitree.Rect{Right: 1080, Bottom: 2400},
				ClassName:   cfg.Launcher.Package + ".LauncherActivity",
				PackageName: cfg.Launcher.Package,
				Enabled:     true,
				Visible:     true,
			},
		}},
	}
}
