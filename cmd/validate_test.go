package cmd

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiretap/wiretap/internal/device"
	"github.com/wiretap/wiretap/internal/episode"
	"github.com/wiretap/wiretap/internal/framebuffer"
	"github.com/wiretap/wiretap/internal/uitree"
)

// recordEpisode writes one complete episode with a single click step
// into root and returns its directory.
func recordEpisode(t *testing.T, root string) string {
	t.Helper()

	screen := device.Screen{
		Width:  64,
		Height: 96,
		Fill:   color.RGBA{R: 0xff, A: 0xff},
		Windows: []uitree.Window{{
			Bounds: uitree.Rect{Right: 64, Bottom: 96},
			Active: true,
			Type:   uitree.WindowTypeApplication,
			Root: &uitree.Node{
				Bounds:  uitree.Rect{Right: 64, Bottom: 96},
				Enabled: true,
				Visible: true,
			},
		}},
	}
	sim := device.NewSim(screen, "com.android.launcher")
	defer sim.Close()

	manager, err := episode.NewManager(root, zap.NewNop())
	require.NoError(t, err)
	ep, err := manager.Begin("test goal")
	require.NoError(t, err)

	buffer := framebuffer.New(sim, sim, zap.NewNop())
	require.NoError(t, buffer.Refresh(context.Background()))

	ep.Append(episode.NewClick(32, 48))
	step := ep.NextStep()
	width, height, err := buffer.Save(ep.Dir, step)
	require.NoError(t, err)
	ep.RecordStepArtifacts(width, height)
	require.NoError(t, ep.Close())

	return ep.Dir
}

func TestValidateEpisode_Valid(t *testing.T) {
	dir := recordEpisode(t, t.TempDir())

	result := validateEpisode(dir)

	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidateEpisode_MissingMetadata(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "episode_0")
	require.NoError(t, os.MkdirAll(dir, 0750))

	result := validateEpisode(dir)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}

func TestValidateEpisode_PartialArtifacts(t *testing.T) {
	dir := recordEpisode(t, t.TempDir())
	require.NoError(t, os.Remove(filepath.Join(dir, framebuffer.ScreenshotFile(0))))

	result := validateEpisode(dir)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "partial artifacts")
}

func TestValidateEpisode_CaptureGapAccepted(t *testing.T) {
	root := t.TempDir()
	manager, err := episode.NewManager(root, zap.NewNop())
	require.NoError(t, err)
	ep, err := manager.Begin("gap goal")
	require.NoError(t, err)

	// Action recorded but the capture failed: no artifacts at all.
	ep.Append(episode.NewClick(10, 10))
	ep.NextStep()
	require.NoError(t, ep.Close())

	result := validateEpisode(ep.Dir)

	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidateEpisode_CorruptTreeDocument(t *testing.T) {
	dir := recordEpisode(t, t.TempDir())
	dfsPath := filepath.Join(dir, framebuffer.TreeFile(0, uitree.TraversalDFS))
	require.NoError(t, os.WriteFile(dfsPath, []byte("not a traversal document\n"), 0600))

	result := validateEpisode(dir)

	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "dfs document")
}

func TestValidateEpisode_MismatchedDirectoryIndex(t *testing.T) {
	root := t.TempDir()
	dir := recordEpisode(t, root)

	renamed := filepath.Join(root, "episode_7")
	require.NoError(t, os.Rename(dir, renamed))

	result := validateEpisode(renamed)

	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "does not match directory index")
}

func TestEpisodeDirs_FiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"episode_10", "episode_2", "episode_0", "notes", "episode_bad"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0750))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "episode_5"), []byte("file"), 0600))

	dirs, err := episodeDirs(root)
	require.NoError(t, err)

	var names []string
	for _, d := range dirs {
		names = append(names, filepath.Base(d))
	}
	assert.Equal(t, []string{"episode_bad", "episode_0", "episode_2", "episode_10"}, names)
}

func TestEpisodeDirs_MissingRoot(t *testing.T) {
	_, err := episodeDirs(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
