package capture

import (
	"image"
)

// VideoStreamer produces frames at native resolution until stopped. The frame
// channel is closed when the stream ends; a terminal error, if any, is sent on
// the error channel first.
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}
