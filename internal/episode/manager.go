package episode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MetadataFile is the per-episode metadata record written on stop.
const MetadataFile = "metadata.json"

// dirPrefix is the episode directory naming scheme: episode_<N>.
const dirPrefix = "episode_"

// Metadata is the episode record consumed by dataset tooling.
type Metadata struct {
	EpisodeID         int      `json:"episode_id"`
	Goal              string   `json:"goal"`
	ScreenshotWidths  []int    `json:"screenshot_widths"`
	ScreenshotHeights []int    `json:"screenshot_heights"`
	Actions           []Action `json:"actions"`
}

// Manager creates and numbers episodes under one dataset root.
type Manager struct {
	root   string
	logger *zap.Logger
}

// NewManager ensures the dataset root exists and returns a manager for it.
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	return &Manager{root: root, logger: logger}, nil
}

// Root returns the dataset root directory.
func (m *Manager) Root() string { return m.root }

// NextIndex returns the index the next episode will receive: the count of
// existing episode directories. Gaps from manually deleted episodes are
// not renumbered.
func (m *Manager) NextIndex() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset directory: %w", err)
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), dirPrefix) {
			count++
		}
	}
	return count, nil
}

// Begin creates the directory for the next episode and returns the live
// episode state.
func (m *Manager) Begin(goal string) (*Episode, error) {
	index, err := m.NextIndex()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(m.root, fmt.Sprintf("%s%d", dirPrefix, index))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create episode directory: %w", err)
	}
	m.logger.Info("episode started",
		zap.Int("episode", index),
		zap.String("goal", goal),
		zap.String("dir", dir))
	return &Episode{
		Index:  index,
		Goal:   goal,
		Dir:    dir,
		logger: m.logger,
	}, nil
}

// Episode is one in-progress recording. All methods are called from the
// recorder's single event loop; Episode does its own locking nowhere.
type Episode struct {
	Index int
	Goal  string
	Dir   string

	actions []Action
	widths  []int
	heights []int
	steps   int

	logger *zap.Logger
}

// Append records an accepted action and journals it. The journal write is
// best-effort: a failed append is logged and the in-memory action list
// stays authoritative for the final metadata.
func (e *Episode) Append(a Action) {
	e.actions = append(e.actions, a)
	if err := appendJournal(filepath.Join(e.Dir, JournalFile), len(e.actions)-1, a, time.Now()); err != nil {
		e.logger.Warn("failed to journal action",
			zap.Int("episode", e.Index), zap.Error(err))
	}
}

// RecordStepArtifacts notes the screenshot dimensions of a successfully
// persisted step. A failed capture skips this call, leaving a gap: fewer
// dimension entries than actions.
func (e *Episode) RecordStepArtifacts(width, height int) {
	e.widths = append(e.widths, width)
	e.heights = append(e.heights, height)
}

// NextStep returns the step index the next capture will use and advances
// the counter.
func (e *Episode) NextStep() int {
	step := e.steps
	e.steps++
	return step
}

// Steps returns the number of steps captured or attempted so far.
func (e *Episode) Steps() int { return e.steps }

// Actions returns a copy of the recorded action list.
func (e *Episode) Actions() []Action {
	out := make([]Action, len(e.actions))
	copy(out, e.actions)
	return out
}

// Close writes the episode metadata. Whatever state has accumulated is
// flushed even when some steps lack persisted artifacts.
func (e *Episode) Close() error {
	md := Metadata{
		EpisodeID:         e.Index,
		Goal:              e.Goal,
		ScreenshotWidths:  e.widths,
		ScreenshotHeights: e.heights,
		Actions:           e.actions,
	}
	if md.ScreenshotWidths == nil {
		md.ScreenshotWidths = []int{}
	}
	if md.ScreenshotHeights == nil {
		md.ScreenshotHeights = []int{}
	}
	if md.Actions == nil {
		md.Actions = []Action{}
	}
	if err := writeMetadata(filepath.Join(e.Dir, MetadataFile), &md); err != nil {
		return err
	}
	e.logger.Info("episode closed",
		zap.Int("episode", e.Index),
		zap.Int("actions", len(e.actions)),
		zap.Int("steps", e.steps))
	return nil
}

// writeMetadata persists the metadata atomically: write to a temp file,
// then rename into place.
func writeMetadata(path string, md *Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp metadata file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}
	return nil
}

// ReadMetadata loads an episode's metadata record.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // metadata path is derived
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &md, nil
}
