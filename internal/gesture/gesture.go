// Package gesture classifies a raw multitouch event stream into the
// click/swipe signals delivered to the recorder's control surface. The
// input is the kernel-style event triplet stream (type, code, value) that
// `adb shell getevent` prints.
package gesture

import (
	"math"
	"time"

	"github.com/wiretap/wiretap/internal/control"
)

// Input event types.
const (
	EvSyn = 0x0000
	EvKey = 0x0001
	EvAbs = 0x0003
)

// Input event codes.
const (
	AbsMTPositionX  = 0x0035
	AbsMTPositionY  = 0x0036
	AbsMTTrackingID = 0x0039
	BtnTouch        = 0x014a
)

// MaxRawCoordinate is the maximum value the touch digitizer reports on
// either axis before scaling to screen pixels.
const MaxRawCoordinate = 4095

// RawEvent is one event triplet from the touch device.
type RawEvent struct {
	Device string
	Type   int
	Code   int
	Value  int
}

// Thresholds control gesture classification.
type Thresholds struct {
	// ClickMaxDuration is the longest press still counted as a click.
	ClickMaxDuration time.Duration
	// ClickMaxDistance is the farthest travel in pixels still counted as
	// a click.
	ClickMaxDistance float64
	// SwipeMinDistance is the minimum travel in pixels for a swipe.
	SwipeMinDistance float64
}

// DefaultThresholds returns the stock classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ClickMaxDuration: 300 * time.Millisecond,
		ClickMaxDistance: 100,
		SwipeMinDistance: 200,
	}
}

// touchState tracks one finger between touch-down and lift.
type touchState struct {
	x, y           int
	trackingID     int
	touching       bool
	startX, startY int
	haveStartX     bool
	haveStartY     bool
	startTime      time.Time
	haveStartTime  bool
}

// Classifier consumes raw events and emits one gesture signal per
// completed touch. Not safe for concurrent use; feed it from one reader.
type Classifier struct {
	thresholds Thresholds
	screenW    int
	screenH    int
	emit       func(control.GestureSignal)
	now        func() time.Time
	state      touchState
}

// NewClassifier builds a classifier scaling raw coordinates to the given
// screen dimensions and delivering signals through emit.
func NewClassifier(screenW, screenH int, thresholds Thresholds, emit func(control.GestureSignal)) *Classifier {
	return &Classifier{
		thresholds: thresholds,
		screenW:    screenW,
		screenH:    screenH,
		emit:       emit,
		now:        time.Now,
		state:      touchState{trackingID: -1},
	}
}

// Process feeds one raw event through the touch state machine.
func (c *Classifier) Process(ev RawEvent) {
	switch {
	case ev.Type == EvKey && ev.Code == BtnTouch:
		c.state.touching = ev.Value != 0
		if ev.Value != 0 {
			c.state.startTime = c.now()
			c.state.haveStartTime = true
		} else {
			c.touchEnd()
		}
	case ev.Type == EvAbs && ev.Code == AbsMTPositionX:
		c.state.x = scale(ev.Value, c.screenW)
		if !c.state.haveStartX && c.state.touching {
			c.state.startX = c.state.x
			c.state.haveStartX = true
		}
	case ev.Type == EvAbs && ev.Code == AbsMTPositionY:
		c.state.y = scale(ev.Value, c.screenH)
		if !c.state.haveStartY && c.state.touching {
			c.state.startY = c.state.y
			c.state.haveStartY = true
		}
	case ev.Type == EvAbs && ev.Code == AbsMTTrackingID:
		if int32(ev.Value) == -1 {
			c.touchEnd()
		}
		c.state.trackingID = int(int32(ev.Value))
	}
}

// touchEnd classifies the completed touch and resets the start markers.
func (c *Classifier) touchEnd() {
	if sig, ok := c.classify(); ok {
		c.emit(sig)
	}
	c.state.haveStartX = false
	c.state.haveStartY = false
	c.state.haveStartTime = false
}

// classify decides whether the completed touch was a click or a swipe.
// Swipe direction names follow the scroll direction of the content, not
// the finger: a finger moving down the screen scrolls the content up.
func (c *Classifier) classify() (control.GestureSignal, bool) {
	s := &c.state
	if !s.haveStartX || !s.haveStartY || !s.haveStartTime {
		return control.GestureSignal{}, false
	}

	duration := c.now().Sub(s.startTime)
	dx := float64(s.x - s.startX)
	dy := float64(s.y - s.startY)
	distance := math.Hypot(dx, dy)

	if duration <= c.thresholds.ClickMaxDuration && distance <= c.thresholds.ClickMaxDistance {
		return control.GestureSignal{Type: control.GestureClick, X: s.x, Y: s.y}, true
	}
	if distance < c.thresholds.SwipeMinDistance {
		return control.GestureSignal{}, false
	}

	var gt control.GestureType
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			gt = control.GestureSwipeRight
		} else {
			gt = control.GestureSwipeLeft
		}
	} else {
		if dy > 0 {
			gt = control.GestureSwipeUp
		} else {
			gt = control.GestureSwipeDown
		}
	}
	endX, endY := s.x, s.y
	return control.GestureSignal{
		Type: gt,
		X:    s.startX,
		Y:    s.startY,
		X2:   &endX,
		Y2:   &endY,
	}, true
}

// scale maps a raw digitizer coordinate onto screen pixels.
func scale(raw, screen int) int {
	return raw * screen / MaxRawCoordinate
}
