package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"maskcam/internal/state"
)

// FrameSource hands out the newest captured frame.
type FrameSource interface {
	Latest() image.Image
}

// Sampler sends the newest frame to the detector once per interval while
// capture is on. At most one request is in flight; a tick that finds one
// still running is dropped. Stop cancels the in-flight request.
type Sampler struct {
	frames FrameSource
	store  *state.Store
	logger *zap.SugaredLogger

	inflight *semaphore.Weighted

	latency atomic.Duration
	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	mu     sync.Mutex
	det    Detector
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSampler(det Detector, frames FrameSource, store *state.Store, logger *zap.SugaredLogger) *Sampler {
	return &Sampler{
		det:      det,
		frames:   frames,
		store:    store,
		logger:   logger.Named("sampler"),
		inflight: semaphore.NewWeighted(1),
	}
}

// SetDetector swaps the detector used by subsequent ticks.
func (s *Sampler) SetDetector(det Detector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.det = det
}

// Start begins sampling for generation gen. Calling Start while running
// restarts the loop.
func (s *Sampler) Start(ctx context.Context, gen uint64, interval time.Duration) {
	s.Stop()

	if interval <= 0 {
		interval = time.Second
	}

	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Tick(ctx, gen)
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Infow("sampling started", "interval", interval, "generation", gen)
}

// Stop cancels the loop and any in-flight request and waits for both.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()

	s.logger.Info("sampling stopped")
}

// Wait blocks until in-flight requests have finished.
func (s *Sampler) Wait() {
	s.wg.Wait()
}

// Tick runs one sampling step. It reports whether a request was dispatched.
func (s *Sampler) Tick(ctx context.Context, gen uint64) bool {
	snap := s.store.Snapshot()
	if !snap.Active || snap.Generation != gen || ctx.Err() != nil {
		return false
	}

	s.mu.Lock()
	det := s.det
	s.mu.Unlock()

	frame := s.frames.Latest()
	if frame == nil || det == nil {
		return false
	}

	if !s.inflight.TryAcquire(1) {
		s.dropped.Inc()
		s.logger.Debug("previous request still running, tick dropped")
		return false
	}

	s.sent.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inflight.Release(1)

		s.detect(ctx, det, gen, frame)
	}()

	return true
}

func (s *Sampler) detect(ctx context.Context, det Detector, gen uint64, frame image.Image) {
	start := time.Now()

	results, err := det.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debugw("request cancelled", "error", err)
			return
		}
		s.failed.Inc()
		s.logger.Warnw("error sending frame", "error", err)
		return
	}

	s.latency.Store(time.Since(start))

	if !s.store.SetResults(gen, results) {
		s.logger.Debugw("discarding response from a finished session", "generation", gen)
	}
}

// Latency is the round-trip time of the last successful request.
func (s *Sampler) Latency() time.Duration { return s.latency.Load() }

func (s *Sampler) Sent() uint64    { return s.sent.Load() }
func (s *Sampler) Dropped() uint64 { return s.dropped.Load() }
func (s *Sampler) Failed() uint64  { return s.failed.Load() }
