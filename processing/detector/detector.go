// Package detector sends sampled frames to the remote detection service and
// feeds the returned regions into the UI state.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"maskcam/internal/config"
	"maskcam/internal/models"
)

// ErrBadStatus is returned when the service answers with a non-2xx status.
var ErrBadStatus = errors.New("detection service returned an error status")

// Detector turns one frame into a set of labeled regions.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]models.DetectionResult, error)
	Close() error
}

// New builds the detector for the configured transport.
func New(cfg *config.Config, logger *zap.SugaredLogger) (Detector, error) {
	dc := cfg.GetDetector()
	enc := Encoder{Quality: cfg.GetJPEGQuality(), MaxWidth: cfg.GetMaxUploadWidth()}
	timeout := time.Duration(dc.TimeoutMs) * time.Millisecond

	switch dc.Transport {
	case config.TransportHTTP, "":
		return NewHTTPDetector(dc.URL, timeout, enc, logger), nil
	case config.TransportWS:
		return NewWSDetector(dc.URL, timeout, enc, logger)
	default:
		return nil, errors.Errorf("unknown detector transport %q", dc.Transport)
	}
}
