// Package uitree provides the in-memory model of a captured UI hierarchy
// and the serializers that turn a window forest into the traversal
// documents persisted with every recorded step.
package uitree

import "fmt"

// Rect is a rectangle in screen pixel coordinates.
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// String renders the rectangle in the document format: [left,top][right,bottom].
func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the rectangle height in pixels.
func (r Rect) Height() int { return r.Bottom - r.Top }

// WindowType classifies a window in the captured forest.
type WindowType int

// Window types reported by the platform accessor.
const (
	WindowTypeUnknown WindowType = iota
	WindowTypeApplication
	WindowTypeInputMethod
	WindowTypeSystem
	WindowTypeAccessibilityOverlay
	WindowTypeSplitScreenDivider
)

// String returns the document representation of the window type.
func (t WindowType) String() string {
	switch t {
	case WindowTypeApplication:
		return "application"
	case WindowTypeInputMethod:
		return "input_method"
	case WindowTypeSystem:
		return "system"
	case WindowTypeAccessibilityOverlay:
		return "accessibility_overlay"
	case WindowTypeSplitScreenDivider:
		return "split_screen_divider"
	default:
		return "unknown"
	}
}

// Node is one UI element at capture time. Node pointers are opaque handles
// valid only for the duration of one capture; they must never be retained
// across snapshots because the underlying UI rebuilds its hierarchy on
// every redraw.
type Node struct {
	Bounds      Rect
	Clickable   bool
	Editable    bool
	Scrollable  bool
	Checked     bool
	Enabled     bool
	Focusable   bool
	Password    bool
	Visible     bool
	Text        string
	ContentDesc string
	ClassName   string
	PackageName string
	// Actions lists the interaction actions the platform reports for this
	// node (e.g. "click", "focus", "set_text").
	Actions  []string
	Children []*Node
}

// Window is one window in the captured forest. Root may be nil when the
// platform reports a window without an attached hierarchy; such windows
// still appear in the serialized documents with an empty-tree marker.
type Window struct {
	Bounds  Rect
	Active  bool
	Focused bool
	Type    WindowType
	Root    *Node
}
