// Package session ties the camera, the sampler and the UI state together so
// that start and stop always run in the same order.
package session

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"maskcam/internal/config"
	"maskcam/internal/state"
	"maskcam/processing/detector"
)

// Camera is the part of capture.Controller the session drives.
type Camera interface {
	Start(ctx context.Context) error
	Stop()
	Latest() image.Image
	SetOnLost(fn func(err error))
}

// DetectorFactory builds a fresh detector for each capture session.
type DetectorFactory func(cfg *config.Config, logger *zap.SugaredLogger) (detector.Detector, error)

type Session struct {
	cfg     *config.Config
	camera  Camera
	store   *state.Store
	sampler *detector.Sampler
	newDet  DetectorFactory
	logger  *zap.SugaredLogger

	mu  sync.Mutex
	det detector.Detector
	ctx context.Context
	// bumped on every Start; a loss report for an older run is ignored
	run uint64

	errMu   sync.Mutex
	onError func(err error)
}

// New wires a session. ctx bounds the lifetime of every sampling loop it starts.
func New(ctx context.Context, cfg *config.Config, camera Camera, store *state.Store, newDet DetectorFactory, logger *zap.SugaredLogger) *Session {
	if newDet == nil {
		newDet = detector.New
	}

	s := &Session{
		cfg:     cfg,
		camera:  camera,
		store:   store,
		sampler: detector.NewSampler(nil, camera, store, logger),
		newDet:  newDet,
		logger:  logger.Named("session"),
		ctx:     ctx,
	}

	return s
}

// lostHandler returns the loss callback for one run. It only stops capture
// when that run is still the current one.
func (s *Session) lostHandler(run uint64) func(err error) {
	return func(err error) {
		s.mu.Lock()
		if s.run != run || !s.store.Active() {
			s.mu.Unlock()
			s.logger.Debugw("ignoring loss of a finished stream", "run", run, "error", err)
			return
		}

		s.logger.Errorw("camera lost, stopping capture", "error", err)
		stopErr := s.stopLocked()
		s.mu.Unlock()

		if stopErr != nil {
			s.logger.Warnw("stop after camera loss", "error", stopErr)
		}
		s.reportError(errors.Wrap(err, "camera lost"))
	}
}

// Start acquires the camera and begins sampling. On failure nothing changes:
// the state stays off and no request is ever sent.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Active() {
		return nil
	}

	det, err := s.newDet(s.cfg, s.logger)
	if err != nil {
		return errors.Wrap(err, "build detector")
	}

	s.run++
	s.camera.SetOnLost(s.lostHandler(s.run))

	if err := s.camera.Start(ctx); err != nil {
		s.logger.Errorw("camera error", "error", err)
		return multierr.Append(errors.Wrap(err, "camera"), det.Close())
	}

	s.det = det
	s.sampler.SetDetector(det)

	gen := s.store.Begin()
	s.sampler.Start(s.ctx, gen, s.cfg.GetSampleInterval())

	s.logger.Infow("capture started", "generation", gen)

	return nil
}

// Stop cancels sampling, releases the camera and clears the results. It
// always clears the state, even when nothing was running.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	s.sampler.Stop()
	s.camera.Stop()
	s.store.End()

	var err error
	if s.det != nil {
		err = s.det.Close()
		s.det = nil
		s.sampler.SetDetector(nil)
	}

	s.logger.Info("capture stopped")

	return err
}

// SetOnError registers fn to receive failures that happen outside Start and
// Stop, such as the camera disappearing mid-session.
func (s *Session) SetOnError(fn func(err error)) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.onError = fn
}

func (s *Session) reportError(err error) {
	s.errMu.Lock()
	fn := s.onError
	s.errMu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// Toggle starts capture when it is off and stops it when it is on.
func (s *Session) Toggle(ctx context.Context) error {
	if s.store.Active() {
		return s.Stop()
	}
	return s.Start(ctx)
}

func (s *Session) Active() bool {
	return s.store.Active()
}

func (s *Session) Store() *state.Store {
	return s.store
}

func (s *Session) Sampler() *detector.Sampler {
	return s.sampler
}
