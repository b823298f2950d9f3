// Package framebuffer maintains the most recent screenshot and traversal
// document pair, refreshed on a fixed period in the background and saved
// on demand when a step is recorded.
package framebuffer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wiretap/wiretap/internal/device"
	"github.com/wiretap/wiretap/internal/uitree"
)

// ErrEmpty is returned by Save when no capture has ever succeeded.
var ErrEmpty = errors.New("frame buffer is empty")

// ScreenshotFile returns the screenshot file name for a step.
func ScreenshotFile(step int) string {
	return fmt.Sprintf("screenshot_%d.png", step)
}

// TreeFile returns the traversal document file name for a step and mode.
func TreeFile(step int, mode uitree.Traversal) string {
	return fmt.Sprintf("accessibility_tree_%d_%s.txt", step, mode)
}

// Frame is one captured tuple. Frames are replaced wholesale, never
// mutated in place.
type Frame struct {
	PNG        []byte
	Width      int
	Height     int
	DFS        string
	BFS        string
	CapturedAt time.Time
}

// Buffer holds the latest frame under a lock shared by the refresh loop
// and Save.
type Buffer struct {
	tree   device.TreeProvider
	shots  device.ScreenshotProvider
	logger *zap.Logger

	mu    sync.Mutex
	frame *Frame
}

// New returns an empty buffer reading from the given providers.
func New(tree device.TreeProvider, shots device.ScreenshotProvider, logger *zap.Logger) *Buffer {
	return &Buffer{tree: tree, shots: shots, logger: logger}
}

// Refresh captures a new screenshot and snapshot pair and swaps it into
// the buffer. All capture and serialization work happens before the lock
// is taken; on any capture failure the previous frame stays in place and
// the error is returned for the caller to log.
func (b *Buffer) Refresh(ctx context.Context) error {
	shot, err := b.shots.CaptureScreenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot capture failed: %w", err)
	}
	windows, err := b.tree.CaptureTree()
	if err != nil {
		return fmt.Errorf("tree capture failed: %w", err)
	}

	// One generator for both traversals so the documents agree on ids.
	gen := uitree.NewIDGenerator()
	frame := &Frame{
		PNG:        shot.PNG,
		Width:      shot.Width,
		Height:     shot.Height,
		DFS:        uitree.SerializeDFS(windows, gen),
		BFS:        uitree.SerializeBFS(windows, gen),
		CapturedAt: time.Now(),
	}

	b.mu.Lock()
	b.frame = frame
	b.mu.Unlock()
	return nil
}

// RunRefreshLoop refreshes the buffer every interval until the context is
// cancelled. Capture failures are logged and never stop the loop.
func (b *Buffer) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Refresh(ctx); err != nil {
				b.logger.Warn("frame refresh failed, keeping previous frame", zap.Error(err))
			}
		}
	}
}

// Latest returns the currently held frame, or false when nothing has been
// captured yet.
func (b *Buffer) Latest() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil, false
	}
	return b.frame, true
}

// Save writes the held screenshot and both traversal documents into dir
// under the given step index and returns the screenshot dimensions.
func (b *Buffer) Save(dir string, step int) (width, height int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame == nil {
		return 0, 0, ErrEmpty
	}

	files := []struct {
		name string
		data []byte
	}{
		{ScreenshotFile(step), b.frame.PNG},
		{TreeFile(step, uitree.TraversalDFS), []byte(b.frame.DFS)},
		{TreeFile(step, uitree.TraversalBFS), []byte(b.frame.BFS)},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0600); err != nil {
			return 0, 0, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	return b.frame.Width, b.frame.Height, nil
}
