package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"maskcam/internal/config"
)

// Controller acquires and releases the capture device and keeps the most
// recent frame for the sampler and the video surface.
type Controller struct {
	cfg     *config.Config
	factory Factory
	logger  *zap.SugaredLogger

	// serializes Start and Stop
	opMu sync.Mutex

	mu       sync.RWMutex
	onLost   func(err error)
	streamer VideoStreamer
	latest   image.Image
	pumpDone chan struct{}
}

func NewController(cfg *config.Config, factory Factory, logger *zap.SugaredLogger) *Controller {
	if factory == nil {
		factory = NewStreamer
	}
	return &Controller{
		cfg:     cfg,
		factory: factory,
		logger:  logger.Named("camera"),
	}
}

// Start opens the configured source and waits for its first frame. On any
// failure the source is released and the controller stays inactive.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Active() {
		return nil
	}

	source := c.cfg.GetSource()
	c.logger.Infow("opening camera", "source", source)

	s, err := c.factory(c.cfg)
	if err != nil {
		return errors.Wrapf(err, "open %s", source)
	}

	if err := s.Start(); err != nil {
		s.Stop()
		return errors.Wrapf(err, "start %s", source)
	}

	first, err := awaitFirstFrame(ctx, s, c.cfg.GetOpenTimeout())
	if err != nil {
		s.Stop()
		return errors.Wrapf(err, "start %s", source)
	}

	done := make(chan struct{})

	c.mu.Lock()
	c.streamer = s
	c.latest = first
	c.pumpDone = done
	c.mu.Unlock()

	go c.pump(s, done)

	b := first.Bounds()
	c.logger.Infow("camera started", "source", source, "width", b.Dx(), "height", b.Dy())

	return nil
}

// Stop releases the device and forgets the last frame. Safe to call when inactive.
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	s := c.streamer
	done := c.pumpDone
	c.streamer = nil
	c.latest = nil
	c.pumpDone = nil
	c.mu.Unlock()

	if s == nil {
		return
	}

	s.Stop()
	<-done

	c.logger.Info("camera stopped")
}

// SetOnLost registers fn to be called, from its own goroutine, when an active
// stream ends without Stop being called.
func (c *Controller) SetOnLost(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLost = fn
}

func (c *Controller) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamer != nil
}

// Latest returns the newest frame at native resolution, or nil when inactive.
func (c *Controller) Latest() image.Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Size returns the pixel size of the newest frame.
func (c *Controller) Size() (int, int) {
	f := c.Latest()
	if f == nil {
		return 0, 0
	}
	b := f.Bounds()
	return b.Dx(), b.Dy()
}

func (c *Controller) pump(s VideoStreamer, done chan struct{}) {
	defer close(done)

	frames := s.FrameChan()
	errs := s.ErrorChan()
	var streamErr error

	for frames != nil {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if frame == nil {
				continue
			}

			c.mu.Lock()
			if c.streamer == s {
				c.latest = frame
			}
			c.mu.Unlock()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				streamErr = err
			}
		}
	}

	if streamErr == nil && errs != nil {
		select {
		case err, ok := <-errs:
			if ok && err != nil {
				streamErr = err
			}
		default:
		}
	}

	c.mu.RLock()
	current := c.streamer == s
	onLost := c.onLost
	c.mu.RUnlock()

	if !current {
		return
	}

	if streamErr == nil {
		streamErr = ErrStreamEnded
	}
	c.logger.Warnw("camera stream lost", "error", streamErr)

	if onLost != nil {
		go onLost(streamErr)
	}
}

func awaitFirstFrame(ctx context.Context, s VideoStreamer, timeout time.Duration) (image.Image, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	frames := s.FrameChan()
	errs := s.ErrorChan()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						return nil, err
					}
				default:
				}
				return nil, ErrStreamEnded
			}
			if frame != nil {
				return frame, nil
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return nil, err
			}

		case <-timer.C:
			return nil, ErrOpenTimeout

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
