// Package control defines the process-boundary command surface of the
// recorder: the control intents, their JSON wire form, and the unix-socket
// server and client that carry them.
package control

import (
	"errors"
	"fmt"
)

// Kind identifies a control intent.
type Kind string

// Control intent kinds.
const (
	KindStartRecording Kind = "start_recording"
	KindStopRecording  Kind = "stop_recording"
	KindGesture        Kind = "gesture"
)

// GestureType identifies a raw gesture signal.
type GestureType string

// Gesture types accepted on the control surface. The values match what the
// external gesture client broadcasts.
const (
	GestureClick      GestureType = "CLICK"
	GestureSwipeLeft  GestureType = "SWIPE_LEFT"
	GestureSwipeRight GestureType = "SWIPE_RIGHT"
	GestureSwipeUp    GestureType = "SWIPE_UP"
	GestureSwipeDown  GestureType = "SWIPE_DOWN"
)

// ErrUnknownGestureType marks a gesture signal whose type is not
// recognized. Such signals are dropped at the decode boundary and never
// reach arbitration.
var ErrUnknownGestureType = errors.New("unknown gesture type")

// ParseGestureType validates a raw gesture type string.
func ParseGestureType(s string) (GestureType, error) {
	switch GestureType(s) {
	case GestureClick, GestureSwipeLeft, GestureSwipeRight, GestureSwipeUp, GestureSwipeDown:
		return GestureType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGestureType, s)
	}
}

// IsSwipe reports whether the gesture type is one of the four swipes.
func (t GestureType) IsSwipe() bool {
	switch t {
	case GestureSwipeLeft, GestureSwipeRight, GestureSwipeUp, GestureSwipeDown:
		return true
	default:
		return false
	}
}

// GestureSignal is a raw gesture with pixel coordinates. X2/Y2 carry the
// end position of a swipe and are nil for clicks.
type GestureSignal struct {
	Type GestureType `json:"type"`
	X    int         `json:"x"`
	Y    int         `json:"y"`
	X2   *int        `json:"x2,omitempty"`
	Y2   *int        `json:"y2,omitempty"`
}

// Validate checks that the signal is well formed.
func (g *GestureSignal) Validate() error {
	if _, err := ParseGestureType(string(g.Type)); err != nil {
		return err
	}
	if g.Type.IsSwipe() && (g.X2 == nil || g.Y2 == nil) {
		return fmt.Errorf("swipe gesture requires x2 and y2")
	}
	return nil
}

// Intent is one control command delivered to the recorder. Intents are
// fire-and-forget: the sender does not wait for the recorder to act, only
// for the transport to accept the message.
type Intent struct {
	Kind    Kind           `json:"intent"`
	Goal    string         `json:"goal,omitempty"`
	Gesture *GestureSignal `json:"gesture,omitempty"`
}

// Validate checks that the intent is well formed.
func (in *Intent) Validate() error {
	switch in.Kind {
	case KindStartRecording, KindStopRecording:
		if in.Gesture != nil {
			return fmt.Errorf("%s intent must not carry a gesture payload", in.Kind)
		}
		return nil
	case KindGesture:
		if in.Gesture == nil {
			return fmt.Errorf("gesture intent requires a gesture payload")
		}
		return in.Gesture.Validate()
	default:
		return fmt.Errorf("unknown intent kind %q", in.Kind)
	}
}
