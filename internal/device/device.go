// Package device defines the collaborator interfaces through which the
// recorder observes the platform under observation: structural UI events,
// the on-demand window forest, and screenshots. The platform side of these
// interfaces is out of scope; the package also ships a scripted simulated
// device used by tests and by the default serve wiring.
package device

import (
	"context"
	"time"

	"github.com/wiretap/wiretap/internal/uitree"
)

// EventType is the kind of a structural UI event.
type EventType int

// Structural event kinds delivered by the platform.
const (
	EventClick EventType = iota
	EventTextChanged
	EventWindowStateChanged
)

// String returns a short name for logging.
func (t EventType) String() string {
	switch t {
	case EventClick:
		return "click"
	case EventTextChanged:
		return "text_changed"
	case EventWindowStateChanged:
		return "window_state_changed"
	default:
		return "unknown"
	}
}

// UIEvent is one structural event observed on the platform. Source is the
// originating node handle and may be nil; it is only valid until the next
// capture and must not be retained.
type UIEvent struct {
	Type        EventType
	Source      *uitree.Node
	PackageName string
	ClassName   string
	ContentDesc string
	Text        string
	Time        time.Time
}

// EventSource delivers structural UI events. The recorder only reacts; it
// never requests events.
type EventSource interface {
	// Events returns the delivery channel. The channel is closed when the
	// source shuts down.
	Events() <-chan UIEvent
}

// TreeProvider returns the current window forest on demand. Each call
// produces a fresh snapshot; returned node handles are valid only until
// the next call.
type TreeProvider interface {
	CaptureTree() ([]uitree.Window, error)
}

// Screenshot is one captured frame.
type Screenshot struct {
	PNG    []byte
	Width  int
	Height int
}

// ScreenshotProvider captures the current screen contents.
type ScreenshotProvider interface {
	CaptureScreenshot(ctx context.Context) (Screenshot, error)
}
