package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maskcam/internal/config"
)

func TestApplyFlagsOnlyOverridesChanged(t *testing.T) {
	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--transport", "ws", "--interval", "250ms"}))

	cfg := config.NewDefaultConfig()
	cfg.SetDetectorURL("http://10.0.0.5:8000/detect-mask/")

	applyFlags(cmd, *opts, cfg)

	det := cfg.GetDetector()
	assert.Equal(t, "http://10.0.0.5:8000/detect-mask/", det.URL)
	assert.Equal(t, config.TransportWS, det.Transport)
	assert.Equal(t, 250*time.Millisecond, cfg.GetSampleInterval())
}

func TestFlagDefaults(t *testing.T) {
	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, config.DefaultConfigPath, opts.configPath)
	assert.Equal(t, "info", opts.logLevel)
	assert.Zero(t, opts.interval)
}
