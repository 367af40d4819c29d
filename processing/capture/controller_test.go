package capture

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"maskcam/internal/config"
)

// fakeStreamer is driven by the test through its channels.
type fakeStreamer struct {
	startErr error

	frames chan image.Image
	errs   chan error
	stop   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	stopped bool
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{
		frames: make(chan image.Image, 4),
		errs:   make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

func (f *fakeStreamer) Start() error { return f.startErr }

func (f *fakeStreamer) Stop() {
	f.once.Do(func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
		close(f.stop)
		close(f.errs)
		close(f.frames)
	})
}

// fail ends the stream with err, as a crashing ffmpeg would.
func (f *fakeStreamer) fail(err error) {
	f.once.Do(func() {
		f.errs <- err
		close(f.errs)
		close(f.frames)
	})
}

func (f *fakeStreamer) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeStreamer) FrameChan() <-chan image.Image { return f.frames }
func (f *fakeStreamer) ErrorChan() <-chan error       { return f.errs }

func frame(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func newTestController(s VideoStreamer, factoryErr error) *Controller {
	cfg := config.NewDefaultConfig()
	cfg.OpenTimeoutMs = 200
	return NewController(cfg, func(*config.Config) (VideoStreamer, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return s, nil
	}, zap.NewNop().Sugar())
}

func TestStartGranted(t *testing.T) {
	s := newFakeStreamer()
	s.frames <- frame(640, 480)

	c := newTestController(s, nil)
	require.NoError(t, c.Start(context.Background()))

	assert.True(t, c.Active())
	w, h := c.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	c.Stop()
	assert.False(t, c.Active())
	assert.Nil(t, c.Latest())
	assert.True(t, s.isStopped())
}

func TestStartDenied(t *testing.T) {
	s := newFakeStreamer()
	s.fail(errors.Wrap(ErrPermissionDenied, "/dev/video0"))

	c := newTestController(s, nil)
	err := c.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, c.Active())
	assert.Nil(t, c.Latest())
}

func TestStartFactoryError(t *testing.T) {
	c := newTestController(nil, ErrNoDevice)
	err := c.Start(context.Background())

	assert.ErrorIs(t, err, ErrNoDevice)
	assert.False(t, c.Active())
}

func TestStartStreamerStartError(t *testing.T) {
	s := newFakeStreamer()
	s.startErr = errors.New("exec: ffmpeg not found")

	c := newTestController(s, nil)
	require.Error(t, c.Start(context.Background()))
	assert.False(t, c.Active())
	assert.True(t, s.isStopped())
}

func TestStartTimesOut(t *testing.T) {
	s := newFakeStreamer()

	c := newTestController(s, nil)
	err := c.Start(context.Background())

	assert.ErrorIs(t, err, ErrOpenTimeout)
	assert.False(t, c.Active())
	assert.True(t, s.isStopped())
}

func TestStopWhenInactiveIsNoop(t *testing.T) {
	c := newTestController(nil, nil)
	c.Stop()
	c.Stop()
	assert.False(t, c.Active())
}

func TestLatestFollowsStream(t *testing.T) {
	s := newFakeStreamer()
	s.frames <- frame(320, 240)

	c := newTestController(s, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	s.frames <- frame(640, 360)

	assert.Eventually(t, func() bool {
		w, _ := c.Size()
		return w == 640
	}, time.Second, 5*time.Millisecond)
}

func TestOnLostCalledWhenStreamDies(t *testing.T) {
	s := newFakeStreamer()
	s.frames <- frame(8, 8)

	c := newTestController(s, nil)
	lost := make(chan error, 1)
	c.SetOnLost(func(err error) { lost <- err })

	require.NoError(t, c.Start(context.Background()))

	boom := errors.New("device unplugged")
	s.fail(boom)

	select {
	case err := <-lost:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("OnLost was not called")
	}

	c.Stop()
}

func TestOnLostNotCalledOnStop(t *testing.T) {
	s := newFakeStreamer()
	s.frames <- frame(8, 8)

	c := newTestController(s, nil)
	lost := make(chan error, 1)
	c.SetOnLost(func(err error) { lost <- err })

	require.NoError(t, c.Start(context.Background()))
	c.Stop()

	select {
	case err := <-lost:
		t.Fatalf("unexpected OnLost: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestImageStreamer(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	path := filepath.Join(t.TempDir(), "still.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	s, err := NewImageStreamer(path, 50)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	got := <-s.FrameChan()
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(0, 0, 32, 24), got.Bounds())
	r, _, _, _ := got.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	s.Stop()
	for range s.FrameChan() {
	}
}

func TestImageStreamerMissingFile(t *testing.T) {
	_, err := NewImageStreamer(filepath.Join(t.TempDir(), "missing.png"), 10)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestControllerWithImageSource(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetSource(config.SourceImage)

	path := filepath.Join(t.TempDir(), "still.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 48))))
	require.NoError(t, f.Close())
	cfg.SetImagePath(path)

	c := NewController(cfg, nil, zap.NewNop().Sugar())
	require.NoError(t, c.Start(context.Background()))

	w, h := c.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)

	c.Stop()
	assert.False(t, c.Active())
}
