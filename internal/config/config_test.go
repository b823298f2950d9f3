package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	input := `
dataset_dir: /data/episodes
timing:
  gesture_delay: 250ms
  text_quiet: 2s
launcher:
  package: com.custom.home
`
	cfg, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "/data/episodes", cfg.DatasetDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.GestureDelay.Std())
	assert.Equal(t, 2*time.Second, cfg.Timing.TextQuiet.Std())
	assert.Equal(t, "com.custom.home", cfg.Launcher.Package)

	// Unspecified fields keep their defaults.
	assert.Equal(t, "/tmp/wiretap.sock", cfg.Socket)
	assert.Equal(t, 300*time.Millisecond, cfg.Timing.RefreshInterval.Std())
	assert.Equal(t, "Activity", cfg.Launcher.ActivitySuffix)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "empty file",
			input:  "",
			errMsg: "empty config file",
		},
		{
			name:   "unknown field",
			input:  "dataset_dir: d\nfps: 30\n",
			errMsg: "field fps not found",
		},
		{
			name:   "malformed duration",
			input:  "timing:\n  gesture_delay: fast\n",
			errMsg: "invalid duration",
		},
		{
			name:   "empty dataset dir",
			input:  "dataset_dir: \"\"\n",
			errMsg: "dataset_dir must be non-empty",
		},
		{
			name:   "zero delay rejected",
			input:  "timing:\n  settle_delay: 0s\n",
			errMsg: "settle_delay must be positive",
		},
		{
			name:   "empty launcher package",
			input:  "launcher:\n  package: \"\"\n",
			errMsg: "package must be non-empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}
