package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, SourceWebcam, cfg.GetSource())
	assert.Equal(t, time.Second, cfg.GetSampleInterval())
	assert.Equal(t, 92, cfg.GetJPEGQuality())
	assert.Equal(t, DefaultDetectorURL, cfg.GetDetector().URL)
	assert.Equal(t, TransportHTTP, cfg.GetDetector().Transport)
	assert.Equal(t, 5*time.Second, cfg.GetOpenTimeout())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig().snapshot(), cfg.snapshot())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"active_source":"Image","image":{"path":"face.png"},"sample_interval_ms":250,"jpeg_quality":400}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, SourceImage, cfg.GetSource())
	assert.Equal(t, "face.png", cfg.GetImagePath())
	assert.Equal(t, 250*time.Millisecond, cfg.GetSampleInterval())
	assert.Equal(t, 92, cfg.GetJPEGQuality(), "out of range quality falls back to default")
	assert.Equal(t, DefaultDetectorURL, cfg.GetDetector().URL)
}

func TestLoadBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	cfg, err := LoadConfigFile(path)
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultDetectorURL, cfg.GetDetector().URL)
}

func TestSaveOverwritesLongerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0644))

	cfg := NewDefaultConfig()
	cfg.SetDetectorURL("http://detector:9000/detect-mask/")
	cfg.SetDetectorTransport(TransportWS)
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://detector:9000/detect-mask/", loaded.GetDetector().URL)
	assert.Equal(t, TransportWS, loaded.GetDetector().Transport)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{ActiveSource: "YouTube", Detector: DetectorConfig{Transport: "grpc"}, MaxUploadWidth: -5}
	cfg.Normalize()

	assert.Equal(t, SourceWebcam, cfg.GetSource())
	assert.Equal(t, TransportHTTP, cfg.GetDetector().Transport)
	assert.Equal(t, 0, cfg.GetMaxUploadWidth())
	assert.Equal(t, uint(24), cfg.GetFPS())
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, NewDefaultConfig().Save(path))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, cfg, zap.NewNop().Sugar(), func(*Config) { reloads.Add(1) })
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)

	next := NewDefaultConfig()
	next.SetDetectorURL("http://other:8000/detect-mask/")
	require.NoError(t, next.Save(path))

	assert.Eventually(t, func() bool {
		return cfg.GetDetector().URL == "http://other:8000/detect-mask/"
	}, 3*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))

	cancel()
	require.NoError(t, <-done)
}
