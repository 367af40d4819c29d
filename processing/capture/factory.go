package capture

import (
	"fmt"

	"maskcam/internal/config"
)

// Factory builds the streamer for the currently configured source.
type Factory func(cfg *config.Config) (VideoStreamer, error)

func NewStreamer(cfg *config.Config) (VideoStreamer, error) {
	switch cfg.GetSource() {
	case config.SourceWebcam:
		return NewFFmpegWebcam(cfg.GetDeviceID(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight()), nil
	case config.SourceLocal:
		return NewLocalStreamer(cfg.GetLocalPath(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight())
	case config.SourceImage:
		return NewImageStreamer(cfg.GetImagePath(), cfg.GetFPS())
	default:
		return nil, fmt.Errorf("unknown source: %s", cfg.GetSource())
	}
}
