// Package arbiter decides which raw input signals become recorded actions.
// It merges two racing signal sources, structural UI events and raw
// gesture coordinates, into exactly one action per physical interaction,
// and owns the recording lifecycle state machine.
package arbiter

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wiretap/wiretap/internal/config"
	"github.com/wiretap/wiretap/internal/control"
	"github.com/wiretap/wiretap/internal/device"
	"github.com/wiretap/wiretap/internal/episode"
	"github.com/wiretap/wiretap/internal/framebuffer"
)

// State is the recording lifecycle state.
type State int

// Lifecycle states. Armed means a start was requested and the recorder is
// waiting for a home-screen observation before opening the episode.
const (
	StateIdle State = iota
	StateArmed
	StateRecording
)

// String returns a short name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the recorder, taken on the event loop.
type Status struct {
	State        State
	Goal         string
	EpisodeIndex int
	Actions      int
	Steps        int
}

// Recorder is the event arbitrator and episode controller. All state is
// owned by the single event loop started by Run; external callers interact
// only through HandleIntent and Status.
type Recorder struct {
	cfg      *config.Config
	buffer   *framebuffer.Buffer
	episodes *episode.Manager
	events   <-chan device.UIEvent
	logger   *zap.Logger

	intents chan control.Intent
	tasks   chan func()
	done    chan struct{}

	state State
	goal  string
	ep    *episode.Episode

	// Arbitration state, touched only on the event loop.
	lastActionTime time.Time
	lastPackage    string
	typingUntil    time.Time

	gestureTimer   *time.Timer
	gestureSeq     int
	pendingGesture control.GestureSignal

	textTimer   *time.Timer
	textSeq     int
	pendingText string
}

// New wires a recorder. Run must be called before intents are delivered.
func New(cfg *config.Config, buffer *framebuffer.Buffer, episodes *episode.Manager,
	events <-chan device.UIEvent, logger *zap.Logger) *Recorder {
	return &Recorder{
		cfg:      cfg,
		buffer:   buffer,
		episodes: episodes,
		events:   events,
		logger:   logger,
		intents:  make(chan control.Intent, 64),
		tasks:    make(chan func(), 64),
		done:     make(chan struct{}),
	}
}

// HandleIntent delivers a control intent to the event loop. Intents are
// fire-and-forget; when the loop has stopped or the queue is saturated the
// intent is dropped with a log line rather than blocking the sender.
func (r *Recorder) HandleIntent(in control.Intent) {
	select {
	case r.intents <- in:
	case <-r.done:
		r.logger.Warn("recorder stopped, dropping intent", zap.String("kind", string(in.Kind)))
	default:
		r.logger.Warn("intent queue full, dropping intent", zap.String("kind", string(in.Kind)))
	}
}

// Status asks the event loop for its current state.
func (r *Recorder) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	task := func() {
		st := Status{State: r.state, Goal: r.goal}
		if r.ep != nil {
			st.EpisodeIndex = r.ep.Index
			st.Actions = len(r.ep.Actions())
			st.Steps = r.ep.Steps()
		}
		reply <- st
	}
	select {
	case r.tasks <- task:
	case <-r.done:
		return Status{}, context.Canceled
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-r.done:
		return Status{}, context.Canceled
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Run drives the event loop until the context is cancelled or the event
// source closes. A recording in progress when the loop stops is closed and
// its metadata flushed.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-r.events:
			if !ok {
				return nil
			}
			r.handleUIEvent(ev)
		case in := <-r.intents:
			r.handleIntent(in)
		case task := <-r.tasks:
			task()
		}
	}
}

// shutdown cancels pending work and flushes an open episode.
func (r *Recorder) shutdown() {
	r.cancelGesture()
	r.cancelText()
	if r.ep != nil {
		if err := r.ep.Close(); err != nil {
			r.logger.Error("failed to flush episode metadata on shutdown", zap.Error(err))
		}
		r.ep = nil
	}
	r.state = StateIdle
}

// ---- control intents ----

func (r *Recorder) handleIntent(in control.Intent) {
	switch in.Kind {
	case control.KindStartRecording:
		r.startRequested(in.Goal)
	case control.KindStopRecording:
		r.stopRecording("stop command")
	case control.KindGesture:
		r.handleGesture(*in.Gesture)
	}
}

// startRequested arms the recorder. A start while already armed or
// recording is a no-op.
func (r *Recorder) startRequested(goal string) {
	if r.state != StateIdle {
		r.logger.Info("start ignored", zap.Stringer("state", r.state))
		return
	}
	r.state = StateArmed
	r.goal = goal
	r.logger.Info("recording armed, waiting for home screen", zap.String("goal", goal))
}

// stopRecording flushes and closes the current episode. A stop while idle
// is a no-op.
func (r *Recorder) stopRecording(reason string) {
	if r.state == StateIdle {
		return
	}
	r.cancelGesture()
	r.cancelText()
	if r.ep != nil {
		if err := r.ep.Close(); err != nil {
			r.logger.Error("failed to flush episode metadata", zap.Error(err))
		}
		r.ep = nil
	}
	r.state = StateIdle
	r.goal = ""
	r.logger.Info("recording stopped", zap.String("reason", reason))
}

// ---- structural UI events ----

func (r *Recorder) handleUIEvent(ev device.UIEvent) {
	if ev.Type == device.EventWindowStateChanged && ev.PackageName == r.cfg.Launcher.Package {
		r.homeObserved()
		return
	}
	if r.state != StateRecording {
		return
	}

	switch ev.Type {
	case device.EventClick:
		r.handleStructuralClick(ev)
	case device.EventTextChanged:
		r.handleTextChanged(ev)
	case device.EventWindowStateChanged:
		r.handleWindowStateChanged(ev)
	}
}

// homeObserved drives the arm/stop transitions: the first home-screen
// observation while armed opens the episode, a second one while recording
// closes it.
func (r *Recorder) homeObserved() {
	switch r.state {
	case StateArmed:
		ep, err := r.episodes.Begin(r.goal)
		if err != nil {
			r.logger.Error("failed to begin episode, disarming", zap.Error(err))
			r.state = StateIdle
			return
		}
		r.ep = ep
		r.state = StateRecording
		r.lastPackage = ""
		r.lastActionTime = time.Time{}
		r.typingUntil = time.Time{}
	case StateRecording:
		r.stopRecording("returned to home screen")
	case StateIdle:
	}
}

// handleStructuralClick records a back-navigation or click action. A
// structural event is authoritative: it supersedes any pending gesture for
// the same physical interaction.
func (r *Recorder) handleStructuralClick(ev device.UIEvent) {
	if ev.Source == nil {
		// Without a source node there are no coordinates to record; a
		// paired raw gesture still has its chance to commit.
		r.logger.Debug("click event without source node")
		return
	}
	r.cancelGesture()

	var action episode.Action
	if r.isBackNavigation(ev) {
		action = episode.NewNavigateBack()
	} else {
		bounds := ev.Source.Bounds
		action = episode.NewClick(bounds.Left+bounds.Width()/2, bounds.Top+bounds.Height()/2)
	}
	r.lastActionTime = time.Now()
	r.processAction(action)
}

// handleTextChanged debounces text input: each event restarts the quiet
// period and supersedes any pending gesture (the keystroke tap).
func (r *Recorder) handleTextChanged(ev device.UIEvent) {
	r.cancelText()
	r.cancelGesture()
	r.pendingText = ev.Text

	r.textSeq++
	seq := r.textSeq
	r.textTimer = r.schedule(r.cfg.Timing.TextQuiet.Std(), func() {
		if r.textSeq != seq {
			return
		}
		r.textTimer = nil
		text := r.pendingText
		r.pendingText = ""
		// Hold a cooldown so keyboard window transitions right after
		// typing are not mistaken for app launches.
		r.typingUntil = time.Now().Add(r.cfg.Timing.TypingCooldown.Std())
		r.lastActionTime = time.Now()
		r.processAction(episode.NewInputText(text))
	})
}

// handleWindowStateChanged performs app-launch detection.
func (r *Recorder) handleWindowStateChanged(ev device.UIEvent) {
	if ev.PackageName == "" {
		return
	}
	if !strings.HasSuffix(ev.ClassName, r.cfg.Launcher.ActivitySuffix) {
		return
	}
	if ev.PackageName == r.cfg.Launcher.Package {
		return
	}
	if ev.PackageName == r.lastPackage {
		return
	}
	if time.Now().Before(r.typingUntil) {
		r.logger.Debug("suppressing app-launch detection during typing cooldown",
			zap.String("package", ev.PackageName))
		return
	}
	r.cancelGesture()
	r.lastPackage = ev.PackageName
	r.lastActionTime = time.Now()
	r.processAction(episode.NewOpenApp(ev.PackageName))
}

// isBackNavigation reports whether the event's content description or
// class name carries one of the configured back-navigation markers.
func (r *Recorder) isBackNavigation(ev device.UIEvent) bool {
	for _, marker := range r.cfg.Launcher.BackMarkers {
		if marker == "" {
			continue
		}
		if strings.Contains(ev.ContentDesc, marker) || strings.Contains(ev.ClassName, marker) {
			return true
		}
	}
	return false
}

// ---- raw gestures ----

// handleGesture schedules a pending gesture that commits after the gesture
// delay unless a structural event claims the same interaction first. A new
// gesture replaces any still-pending one.
func (r *Recorder) handleGesture(sig control.GestureSignal) {
	if r.state != StateRecording {
		return
	}
	r.cancelGesture()
	r.pendingGesture = sig

	r.gestureSeq++
	seq := r.gestureSeq
	delay := r.cfg.Timing.GestureDelay.Std()
	r.gestureTimer = r.schedule(delay, func() {
		if r.gestureSeq != seq {
			return
		}
		r.gestureTimer = nil
		// A structural event that landed during the delay (widened by the
		// guard band) already captured this physical interaction.
		cutoff := time.Now().Add(-delay - r.cfg.Timing.GuardBand.Std())
		if !r.lastActionTime.Before(cutoff) {
			r.logger.Debug("discarding gesture superseded by structural event",
				zap.String("type", string(r.pendingGesture.Type)))
			return
		}
		r.processAction(gestureAction(r.pendingGesture))
	})
}

// gestureAction converts a committed raw gesture into its action record.
func gestureAction(sig control.GestureSignal) episode.Action {
	if sig.Type == control.GestureClick {
		return episode.NewClick(sig.X, sig.Y)
	}
	direction := map[control.GestureType]string{
		control.GestureSwipeLeft:  episode.SwipeLeft,
		control.GestureSwipeRight: episode.SwipeRight,
		control.GestureSwipeUp:    episode.SwipeUp,
		control.GestureSwipeDown:  episode.SwipeDown,
	}[sig.Type]
	return episode.NewSwipe(direction, sig.X, sig.Y, *sig.X2, *sig.Y2)
}

// ---- processing pipeline ----

// processAction appends the accepted action and schedules the capture for
// its step. The append is synchronous; the capture runs on the event loop
// after the settle delay, so capture/persist for consecutive actions can
// never interleave.
func (r *Recorder) processAction(action episode.Action) {
	if r.ep == nil {
		return
	}
	if err := action.Validate(); err != nil {
		r.logger.Error("refusing malformed action", zap.Error(err))
		return
	}
	ep := r.ep
	ep.Append(action)
	step := ep.NextStep()
	r.logger.Info("action recorded",
		zap.String("type", action.Type),
		zap.Int("episode", ep.Index),
		zap.Int("step", step))

	r.schedule(r.cfg.Timing.SettleDelay.Std(), func() {
		if r.ep != ep {
			// The episode closed while the UI was settling; the action is
			// already in its metadata, the step artifacts become a gap.
			return
		}
		r.captureStep(ep, step)
	})
}

// captureStep refreshes the frame buffer and persists the step artifacts.
// Failures skip the step and leave a gap rather than aborting recording.
func (r *Recorder) captureStep(ep *episode.Episode, step int) {
	if err := r.buffer.Refresh(context.Background()); err != nil {
		r.logger.Warn("capture refresh failed, saving last good frame", zap.Error(err))
	}
	width, height, err := r.buffer.Save(ep.Dir, step)
	if err != nil {
		r.logger.Warn("step capture skipped",
			zap.Int("episode", ep.Index), zap.Int("step", step), zap.Error(err))
		return
	}
	ep.RecordStepArtifacts(width, height)
}

// ---- cancellable delayed tasks ----

// schedule posts fn back onto the event loop after d. The returned timer
// only stops the posting; staleness guards (sequence counters) make a task
// that already fired a no-op.
func (r *Recorder) schedule(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		select {
		case r.tasks <- fn:
		case <-r.done:
		}
	})
}

func (r *Recorder) cancelGesture() {
	if r.gestureTimer != nil {
		r.gestureTimer.Stop()
		r.gestureTimer = nil
	}
	r.gestureSeq++
}

func (r *Recorder) cancelText() {
	if r.textTimer != nil {
		r.textTimer.Stop()
		r.textTimer = nil
	}
	r.textSeq++
	r.pendingText = ""
}
