// Package episode manages recorded episodes: directory numbering, the
// per-episode action journal, and the metadata record flushed when a
// recording stops.
package episode

import (
	"errors"
	"fmt"
)

// Action types as they appear in metadata.json and in the journal.
const (
	ActionClick        = "click"
	ActionSwipe        = "swipe"
	ActionInputText    = "input_text"
	ActionOpenApp      = "open_app"
	ActionNavigateBack = "navigate_back"
)

// Swipe directions.
const (
	SwipeLeft  = "left"
	SwipeRight = "right"
	SwipeUp    = "up"
	SwipeDown  = "down"
)

// Coordinates is a screen position in pixels.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Action is one recorded user interaction. The populated fields depend on
// Type; consumers switch on action_type and read only that kind's field
// set. Actions are immutable once recorded.
type Action struct {
	Type        string       `json:"action_type"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Direction   string       `json:"direction,omitempty"`
	Start       *Coordinates `json:"start_coordinates,omitempty"`
	End         *Coordinates `json:"end_coordinates,omitempty"`
	Text        string       `json:"text,omitempty"`
	AppName     string       `json:"app_name,omitempty"`
}

// NewClick returns a click action at the given position.
func NewClick(x, y int) Action {
	return Action{Type: ActionClick, Coordinates: &Coordinates{X: x, Y: y}}
}

// NewSwipe returns a swipe action with its direction and endpoints.
func NewSwipe(direction string, startX, startY, endX, endY int) Action {
	return Action{
		Type:      ActionSwipe,
		Direction: direction,
		Start:     &Coordinates{X: startX, Y: startY},
		End:       &Coordinates{X: endX, Y: endY},
	}
}

// NewInputText returns a text-input action.
func NewInputText(text string) Action {
	return Action{Type: ActionInputText, Text: text}
}

// NewOpenApp returns an app-launch action.
func NewOpenApp(appName string) Action {
	return Action{Type: ActionOpenApp, AppName: appName}
}

// NewNavigateBack returns a back-navigation action.
func NewNavigateBack() Action {
	return Action{Type: ActionNavigateBack}
}

// Validate checks that the action carries the field set of its kind.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionClick:
		if a.Coordinates == nil {
			return errors.New("click action requires coordinates")
		}
	case ActionSwipe:
		switch a.Direction {
		case SwipeLeft, SwipeRight, SwipeUp, SwipeDown:
		default:
			return fmt.Errorf("swipe action has invalid direction %q", a.Direction)
		}
		if a.Start == nil || a.End == nil {
			return errors.New("swipe action requires start and end coordinates")
		}
	case ActionInputText:
		// Empty text is allowed: the user may have cleared a field.
	case ActionOpenApp:
		if a.AppName == "" {
			return errors.New("open_app action requires app_name")
		}
	case ActionNavigateBack:
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}
