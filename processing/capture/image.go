package capture

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ImageStreamer re-emits a still picture as a video stream. Useful for demos
// and for checking the detector without a camera attached.
type ImageStreamer struct {
	stopOnce sync.Once

	frame     *image.RGBA
	targetFPS uint

	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func NewImageStreamer(path string, targetFPS uint) (*ImageStreamer, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNoDevice, path)
		}
		if os.IsPermission(err) {
			return nil, errors.Wrap(ErrPermissionDenied, path)
		}
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	return NewStillStreamer(img, targetFPS), nil
}

// NewStillStreamer streams img at targetFPS.
func NewStillStreamer(img image.Image, targetFPS uint) *ImageStreamer {
	if targetFPS == 0 {
		targetFPS = defaultFPS
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return &ImageStreamer{
		frame:     rgba,
		targetFPS: targetFPS,
		frameChan: make(chan image.Image, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func (is *ImageStreamer) Start() error {
	go is.loop()
	return nil
}

func (is *ImageStreamer) loop() {
	defer close(is.frameChan)
	defer close(is.errChan)

	ticker := time.NewTicker(time.Second / time.Duration(is.targetFPS))
	defer ticker.Stop()

	for {
		frame := rgbaFrame(is.frame.Pix, is.frame.Rect.Dx(), is.frame.Rect.Dy())

		select {
		case is.frameChan <- frame:
		case <-is.stopChan:
			return
		}

		select {
		case <-ticker.C:
		case <-is.stopChan:
			return
		}
	}
}

func (is *ImageStreamer) Stop() {
	is.stopOnce.Do(func() {
		close(is.stopChan)
	})
}

func (is *ImageStreamer) FrameChan() <-chan image.Image { return is.frameChan }
func (is *ImageStreamer) ErrorChan() <-chan error       { return is.errChan }
