package arbiter

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiretap/wiretap/internal/config"
	"github.com/wiretap/wiretap/internal/control"
	"github.com/wiretap/wiretap/internal/device"
	"github.com/wiretap/wiretap/internal/episode"
	"github.com/wiretap/wiretap/internal/framebuffer"
	"github.com/wiretap/wiretap/internal/uitree"
)

const launcherPkg = "com.android.launcher"

func testConfig(datasetDir string) *config.Config {
	cfg := config.Default()
	cfg.DatasetDir = datasetDir
	cfg.Timing = config.Timing{
		GestureDelay:    config.Duration(40 * time.Millisecond),
		GuardBand:       config.Duration(100 * time.Millisecond),
		TextQuiet:       config.Duration(50 * time.Millisecond),
		TypingCooldown:  config.Duration(300 * time.Millisecond),
		SettleDelay:     config.Duration(20 * time.Millisecond),
		RefreshInterval: config.Duration(25 * time.Millisecond),
	}
	cfg.Launcher.Package = launcherPkg
	return cfg
}

func homeScreen() device.Screen {
	root := &uitree.Node{
		ClassName:   "android.widget.FrameLayout",
		PackageName: launcherPkg,
		Visible:     true,
	}
	return device.Screen{
		Windows: []uitree.Window{{Type: uitree.WindowTypeApplication, Active: true, Root: root}},
		Width:   8,
		Height:  16,
		Fill:    color.RGBA{B: 200, A: 255},
	}
}

func appScreen(pkg string) device.Screen {
	button := &uitree.Node{
		Bounds:      uitree.Rect{Left: 100, Top: 200, Right: 300, Bottom: 260},
		Clickable:   true,
		Visible:     true,
		ClassName:   "android.widget.Button",
		PackageName: pkg,
	}
	root := &uitree.Node{
		Bounds:      uitree.Rect{Right: 8, Bottom: 16},
		Visible:     true,
		ClassName:   "android.widget.FrameLayout",
		PackageName: pkg,
		Children:    []*uitree.Node{button},
	}
	return device.Screen{
		Windows: []uitree.Window{{Type: uitree.WindowTypeApplication, Active: true, Root: root}},
		Width:   8,
		Height:  16,
		Fill:    color.RGBA{R: 200, A: 255},
	}
}

type harness struct {
	sim *device.Sim
	rec *Recorder
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	cfg := testConfig(dir)
	sim := device.NewSim(homeScreen(), launcherPkg)
	logger := zap.NewNop()
	buf := framebuffer.New(sim, sim, logger)
	mgr, err := episode.NewManager(dir, logger)
	require.NoError(t, err)

	rec := New(cfg, buf, mgr, sim.Events(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{sim: sim, rec: rec, dir: dir}
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.rec.Status(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.status(t).State == want
	}, 2*time.Second, 5*time.Millisecond, "recorder never reached state %s", want)
}

func (h *harness) waitActions(t *testing.T, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.status(t).Actions == want
	}, 2*time.Second, 5*time.Millisecond, "recorder never reached %d actions", want)
}

// startRecording arms the recorder and walks it onto the home screen.
func (h *harness) startRecording(t *testing.T, goal string) {
	t.Helper()
	h.rec.HandleIntent(control.Intent{Kind: control.KindStartRecording, Goal: goal})
	// Intents and UI events travel on separate channels; make sure the arm
	// lands before the home observation.
	h.waitState(t, StateArmed)
	h.sim.GoHome(homeScreen())
	h.waitState(t, StateRecording)
}

func (h *harness) stopRecording(t *testing.T) {
	t.Helper()
	h.rec.HandleIntent(control.Intent{Kind: control.KindStopRecording})
	h.waitState(t, StateIdle)
}

func (h *harness) readMetadata(t *testing.T, index int) *episode.Metadata {
	t.Helper()
	md, err := episode.ReadMetadata(filepath.Join(h.dir, fmt.Sprintf("episode_%d", index), episode.MetadataFile))
	require.NoError(t, err)
	return md
}

func clickGesture(x, y int) control.Intent {
	return control.Intent{
		Kind:    control.KindGesture,
		Gesture: &control.GestureSignal{Type: control.GestureClick, X: x, Y: y},
	}
}

func TestRecorder_EndToEndScenario(t *testing.T) {
	h := newHarness(t)

	h.startRecording(t, "open settings")
	h.sim.SetScreen(appScreen("com.example.settings"))
	h.rec.HandleIntent(clickGesture(100, 200))

	// Gesture commits after the delay with no competing structural event,
	// then the settle delay elapses and step 0 is captured.
	h.waitActions(t, 1)
	epDir := filepath.Join(h.dir, "episode_0")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(epDir, framebuffer.ScreenshotFile(0)))
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	h.stopRecording(t)

	md := h.readMetadata(t, 0)
	assert.Equal(t, "open settings", md.Goal)
	require.Len(t, md.Actions, 1)
	assert.Equal(t, episode.ActionClick, md.Actions[0].Type)
	assert.Equal(t, 100, md.Actions[0].Coordinates.X)
	assert.Equal(t, 200, md.Actions[0].Coordinates.Y)
	require.Len(t, md.ScreenshotWidths, 1)
	assert.Equal(t, 8, md.ScreenshotWidths[0])
	assert.Equal(t, 16, md.ScreenshotHeights[0])

	for _, name := range []string{
		framebuffer.TreeFile(0, uitree.TraversalDFS),
		framebuffer.TreeFile(0, uitree.TraversalBFS),
	} {
		raw, err := os.ReadFile(filepath.Join(epDir, name))
		require.NoError(t, err)
		doc, err := uitree.ParseDocument(string(raw))
		require.NoError(t, err)
		assert.NoError(t, doc.Validate())
	}
}

func TestRecorder_StructuralEventSupersedesGesture(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "tap once")

	source := &uitree.Node{
		Bounds:    uitree.Rect{Left: 80, Top: 180, Right: 120, Bottom: 220},
		Clickable: true,
		Visible:   true,
		ClassName: "android.widget.Button",
	}
	// The same physical tap arrives as a raw gesture and, within the guard
	// band, as a structural click.
	h.rec.HandleIntent(clickGesture(100, 200))
	h.sim.Emit(device.UIEvent{Type: device.EventClick, Source: source})

	h.waitActions(t, 1)
	// Give the discarded gesture's timer every chance to misfire.
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 1, h.status(t).Actions)

	h.stopRecording(t)
	md := h.readMetadata(t, 0)
	require.Len(t, md.Actions, 1)
	// The structural event won: coordinates are the node center, not the
	// raw gesture position.
	assert.Equal(t, episode.ActionClick, md.Actions[0].Type)
	assert.Equal(t, 100, md.Actions[0].Coordinates.X)
	assert.Equal(t, 200, md.Actions[0].Coordinates.Y)
}

func TestRecorder_GestureAfterStructuralClickWithinGuardBand(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "tap once")

	source := &uitree.Node{
		Bounds:    uitree.Rect{Left: 0, Top: 0, Right: 10, Bottom: 10},
		Clickable: true,
		Visible:   true,
	}
	// Structural event first, raw gesture trailing just behind it.
	h.sim.Emit(device.UIEvent{Type: device.EventClick, Source: source})
	h.waitActions(t, 1)
	h.rec.HandleIntent(clickGesture(5, 5))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, h.status(t).Actions)
}

func TestRecorder_TextDebounceCollapsesToLastText(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "type a query")

	for _, text := range []string{"w", "wi", "wif", "wifi"} {
		h.sim.Emit(device.UIEvent{Type: device.EventTextChanged, Text: text})
		time.Sleep(10 * time.Millisecond) // well inside the quiet period
	}

	h.waitActions(t, 1)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, h.status(t).Actions)

	h.stopRecording(t)
	md := h.readMetadata(t, 0)
	require.Len(t, md.Actions, 1)
	assert.Equal(t, episode.ActionInputText, md.Actions[0].Type)
	assert.Equal(t, "wifi", md.Actions[0].Text)
}

func TestRecorder_TypingCooldownSuppressesAppLaunch(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "type then switch")

	h.sim.Emit(device.UIEvent{Type: device.EventTextChanged, Text: "hello"})
	h.waitActions(t, 1)

	// A keyboard-transition window event right after typing must not be
	// recorded as an app launch.
	h.sim.Emit(device.UIEvent{
		Type:        device.EventWindowStateChanged,
		PackageName: "com.example.ime",
		ClassName:   "com.example.ime.InputActivity",
	})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.status(t).Actions)
}

func TestRecorder_AppLaunchDetection(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "open the app")

	h.sim.LaunchApp(appScreen("com.example.app"), "com.example.app")
	h.waitActions(t, 1)

	// The same foreground app reporting again must not produce a second
	// launch record.
	h.sim.Emit(device.UIEvent{
		Type:        device.EventWindowStateChanged,
		PackageName: "com.example.app",
		ClassName:   "com.example.app.MainActivity",
	})
	// Non-activity window classes never count as launches.
	h.sim.Emit(device.UIEvent{
		Type:        device.EventWindowStateChanged,
		PackageName: "com.example.other",
		ClassName:   "com.example.other.Dialog",
	})
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, h.status(t).Actions)

	h.stopRecording(t)
	md := h.readMetadata(t, 0)
	require.Len(t, md.Actions, 1)
	assert.Equal(t, episode.ActionOpenApp, md.Actions[0].Type)
	assert.Equal(t, "com.example.app", md.Actions[0].AppName)
}

func TestRecorder_BackNavigationMarker(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "go back")

	source := &uitree.Node{
		Bounds:      uitree.Rect{Left: 0, Top: 0, Right: 48, Bottom: 48},
		Clickable:   true,
		Visible:     true,
		ContentDesc: "Navigate up",
	}
	h.sim.Emit(device.UIEvent{Type: device.EventClick, Source: source, ContentDesc: "Navigate up"})
	h.waitActions(t, 1)

	h.stopRecording(t)
	md := h.readMetadata(t, 0)
	require.Len(t, md.Actions, 1)
	assert.Equal(t, episode.ActionNavigateBack, md.Actions[0].Type)
}

func TestRecorder_SwipeGesture(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "scroll down")

	x2, y2 := 540, 600
	h.rec.HandleIntent(control.Intent{
		Kind: control.KindGesture,
		Gesture: &control.GestureSignal{
			Type: control.GestureSwipeUp, X: 540, Y: 2000, X2: &x2, Y2: &y2,
		},
	})
	h.waitActions(t, 1)

	h.stopRecording(t)
	md := h.readMetadata(t, 0)
	require.Len(t, md.Actions, 1)
	assert.Equal(t, episode.ActionSwipe, md.Actions[0].Type)
	assert.Equal(t, episode.SwipeUp, md.Actions[0].Direction)
	assert.Equal(t, 2000, md.Actions[0].Start.Y)
	assert.Equal(t, 600, md.Actions[0].End.Y)
}

func TestRecorder_EpisodeNumberingAcrossCycles(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		h.startRecording(t, fmt.Sprintf("cycle %d", i))
		h.stopRecording(t)
	}

	for i := 0; i < 3; i++ {
		assert.DirExists(t, filepath.Join(h.dir, fmt.Sprintf("episode_%d", i)))
	}
}

func TestRecorder_SecondHomeObservationStops(t *testing.T) {
	h := newHarness(t)
	h.startRecording(t, "wander and return")

	h.sim.LaunchApp(appScreen("com.example.app"), "com.example.app")
	h.waitActions(t, 1)

	h.sim.GoHome(homeScreen())
	h.waitState(t, StateIdle)

	md := h.readMetadata(t, 0)
	assert.Equal(t, "wander and return", md.Goal)
	assert.Len(t, md.Actions, 1)
}

func TestRecorder_StartAndStopAreGuarded(t *testing.T) {
	h := newHarness(t)

	// Stop while idle is a no-op.
	h.rec.HandleIntent(control.Intent{Kind: control.KindStopRecording})
	assert.Equal(t, StateIdle, h.status(t).State)

	h.startRecording(t, "first goal")

	// Start while recording is a no-op: the goal does not change.
	h.rec.HandleIntent(control.Intent{Kind: control.KindStartRecording, Goal: "second goal"})
	time.Sleep(50 * time.Millisecond)
	st := h.status(t)
	assert.Equal(t, StateRecording, st.State)
	assert.Equal(t, "first goal", st.Goal)
}

func TestRecorder_GesturesIgnoredWhileNotRecording(t *testing.T) {
	h := newHarness(t)

	h.rec.HandleIntent(clickGesture(10, 10))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateIdle, h.status(t).State)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecorder_CaptureFailureLeavesGap(t *testing.T) {
	h := newHarness(t)
	h.sim.FailScreenshot(fmt.Errorf("display off"))
	h.startRecording(t, "blind episode")

	h.rec.HandleIntent(clickGesture(1, 2))
	h.waitActions(t, 1)
	time.Sleep(100 * time.Millisecond)

	h.stopRecording(t)

	md := h.readMetadata(t, 0)
	require.Len(t, md.Actions, 1)
	assert.Empty(t, md.ScreenshotWidths)
	assert.Empty(t, md.ScreenshotHeights)

	_, err := os.Stat(filepath.Join(h.dir, "episode_0", framebuffer.ScreenshotFile(0)))
	assert.True(t, os.IsNotExist(err))
}
