package device

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/wiretap/wiretap/internal/uitree"
)

// Screen is one scripted display state of the simulated device.
type Screen struct {
	Windows []uitree.Window
	Width   int
	Height  int
	// Fill is the solid color rendered into the screenshot, letting tests
	// tell screens apart by pixel content.
	Fill color.RGBA
}

// Sim is a scripted device implementing EventSource, TreeProvider, and
// ScreenshotProvider. Tests and the default serve wiring drive it by
// switching screens and emitting structural events.
type Sim struct {
	mu             sync.Mutex
	screen         Screen
	treeErr        error
	screenshotErr  error
	events         chan UIEvent
	launcherPkg    string
	activitySuffix string
}

// NewSim creates a simulated device showing the given initial screen.
func NewSim(initial Screen, launcherPkg string) *Sim {
	return &Sim{
		screen:         initial,
		events:         make(chan UIEvent, 64),
		launcherPkg:    launcherPkg,
		activitySuffix: "Activity",
	}
}

// Events implements EventSource.
func (s *Sim) Events() <-chan UIEvent {
	return s.events
}

// Close shuts down event delivery.
func (s *Sim) Close() {
	close(s.events)
}

// SetScreen replaces the current display state.
func (s *Sim) SetScreen(screen Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = screen
}

// FailTree makes subsequent CaptureTree calls return err; nil restores
// normal behavior.
func (s *Sim) FailTree(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeErr = err
}

// FailScreenshot makes subsequent CaptureScreenshot calls return err; nil
// restores normal behavior.
func (s *Sim) FailScreenshot(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshotErr = err
}

// CaptureTree implements TreeProvider. The returned forest is a deep copy
// of the scripted screen so each capture hands out fresh node handles, the
// way a real platform invalidates handles between traversals.
func (s *Sim) CaptureTree() ([]uitree.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.treeErr != nil {
		return nil, s.treeErr
	}
	windows := make([]uitree.Window, len(s.screen.Windows))
	for i, w := range s.screen.Windows {
		windows[i] = w
		windows[i].Root = cloneNode(w.Root)
	}
	return windows, nil
}

// CaptureScreenshot implements ScreenshotProvider by rendering the screen's
// fill color into a PNG of the screen's dimensions.
func (s *Sim) CaptureScreenshot(_ context.Context) (Screenshot, error) {
	s.mu.Lock()
	screen := s.screen
	err := s.screenshotErr
	s.mu.Unlock()

	if err != nil {
		return Screenshot{}, err
	}
	if screen.Width <= 0 || screen.Height <= 0 {
		return Screenshot{}, fmt.Errorf("screen has no dimensions")
	}

	img := image.NewRGBA(image.Rect(0, 0, screen.Width, screen.Height))
	for y := 0; y < screen.Height; y++ {
		for x := 0; x < screen.Width; x++ {
			img.SetRGBA(x, y, screen.Fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Screenshot{}, fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return Screenshot{PNG: buf.Bytes(), Width: screen.Width, Height: screen.Height}, nil
}

// Emit delivers a structural event to the recorder.
func (s *Sim) Emit(ev UIEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.events <- ev
}

// GoHome switches to the given home screen and emits the window-state
// event the launcher produces when it comes to the foreground.
func (s *Sim) GoHome(home Screen) {
	s.SetScreen(home)
	s.Emit(UIEvent{
		Type:        EventWindowStateChanged,
		PackageName: s.launcherPkg,
		ClassName:   s.launcherPkg + ".LauncherActivity",
	})
}

// LaunchApp switches to the given app screen and emits the window-state
// event of the app's main activity.
func (s *Sim) LaunchApp(app Screen, pkg string) {
	s.SetScreen(app)
	s.Emit(UIEvent{
		Type:        EventWindowStateChanged,
		PackageName: pkg,
		ClassName:   pkg + ".Main" + s.activitySuffix,
	})
}

func cloneNode(n *uitree.Node) *uitree.Node {
	if n == nil {
		return nil
	}
	clone := *n
	clone.Actions = append([]string(nil), n.Actions...)
	clone.Children = make([]*uitree.Node, len(n.Children))
	for i, c := range n.Children {
		clone.Children[i] = cloneNode(c)
	}
	return &clone
}
