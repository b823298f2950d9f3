// Package config provides the recorder configuration file: timings for the
// arbitration state machine, the dataset location, the control socket, and
// the launcher/navigation markers used for action detection.
package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML support for values like "300ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full recorder configuration.
type Config struct {
	// DatasetDir is the root directory that episode directories are
	// created under.
	DatasetDir string `yaml:"dataset_dir"`
	// Socket is the unix socket path for control intents.
	Socket   string   `yaml:"socket"`
	Timing   Timing   `yaml:"timing"`
	Launcher Launcher `yaml:"launcher"`
}

// Timing holds the arbitration and capture delays.
type Timing struct {
	// GestureDelay is how long a raw gesture waits before committing,
	// giving a racing structural event time to supersede it.
	GestureDelay Duration `yaml:"gesture_delay"`
	// GuardBand widens the window in which a structural event counts as
	// having captured the same physical interaction as a pending gesture.
	GuardBand Duration `yaml:"guard_band"`
	// TextQuiet is the quiet period after the last text-change event
	// before a TextInput action is committed.
	TextQuiet Duration `yaml:"text_quiet"`
	// TypingCooldown suppresses app-launch detection after a committed
	// TextInput while the on-screen keyboard settles.
	TypingCooldown Duration `yaml:"typing_cooldown"`
	// SettleDelay is the wait between accepting an action and capturing
	// the step artifacts, letting the UI finish transitioning.
	SettleDelay Duration `yaml:"settle_delay"`
	// RefreshInterval is the frame buffer's background refresh period.
	RefreshInterval Duration `yaml:"refresh_interval"`
}

// Launcher identifies the home screen and navigation markers.
type Launcher struct {
	// Package is the home/launcher package name; observing it while armed
	// starts the episode, observing it again while recording stops it.
	Package string `yaml:"package"`
	// ActivitySuffix is the class-name suffix that marks an activity
	// class in app-launch detection.
	ActivitySuffix string `yaml:"activity_suffix"`
	// BackMarkers are substrings of a content description or class name
	// that identify a back-navigation control.
	BackMarkers []string `yaml:"back_markers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DatasetDir: "dataset",
		Socket:     "/tmp/wiretap.sock",
		Timing: Timing{
			GestureDelay:    Duration(500 * time.Millisecond),
			GuardBand:       Duration(150 * time.Millisecond),
			TextQuiet:       Duration(1 * time.Second),
			TypingCooldown:  Duration(2 * time.Second),
			SettleDelay:     Duration(500 * time.Millisecond),
			RefreshInterval: Duration(300 * time.Millisecond),
		},
		Launcher: Launcher{
			Package:        "com.android.launcher",
			ActivitySuffix: "Activity",
			BackMarkers:    []string{"Navigate up", "back"},
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DatasetDir == "" {
		return errors.New("dataset_dir must be non-empty")
	}
	if c.Socket == "" {
		return errors.New("socket must be non-empty")
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	if err := c.Launcher.Validate(); err != nil {
		return fmt.Errorf("launcher: %w", err)
	}
	return nil
}

// Validate checks that every delay is positive.
func (t *Timing) Validate() error {
	checks := []struct {
		name  string
		value Duration
	}{
		{"gesture_delay", t.GestureDelay},
		{"guard_band", t.GuardBand},
		{"text_quiet", t.TextQuiet},
		{"typing_cooldown", t.TypingCooldown},
		{"settle_delay", t.SettleDelay},
		{"refresh_interval", t.RefreshInterval},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%s must be positive", c.name)
		}
	}
	return nil
}

// Validate checks the launcher section.
func (l *Launcher) Validate() error {
	if l.Package == "" {
		return errors.New("package must be non-empty")
	}
	if l.ActivitySuffix == "" {
		return errors.New("activity_suffix must be non-empty")
	}
	return nil
}
