package capture

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const defaultFPS uint = 30

// LocalFileStreamer plays a video file through ffmpeg, paced to the target FPS.
// Frames are emitted at the file's own resolution unless a scale is given.
type LocalFileStreamer struct {
	stopOnce sync.Once

	path      string
	targetFPS uint

	width  int
	height int

	proc      *ffmpegProc
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func NewLocalStreamer(path string, targetFPS uint, scaledWidth int, scaledHeight int) (*LocalFileStreamer, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNoDevice, path)
		}
		if os.IsPermission(err) {
			return nil, errors.Wrap(ErrPermissionDenied, path)
		}
		return nil, err
	}

	w, h, err := probeVideoDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	if scaledWidth > 0 && scaledHeight > 0 {
		w, h = scaledWidth, scaledHeight
	}

	if targetFPS == 0 {
		targetFPS = defaultFPS
	}

	return &LocalFileStreamer{
		path:      path,
		targetFPS: targetFPS,
		width:     w,
		height:    h,
		frameChan: make(chan image.Image, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}, nil
}

func localArgs(path string, fps uint, width, height int) []string {
	return []string{
		"-i", path,
		"-an",
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d:flags=neighbor", fps, width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}
}

func (ls *LocalFileStreamer) Start() error {
	ls.proc = newFFmpegProc(localArgs(ls.path, ls.targetFPS, ls.width, ls.height))

	stdout, err := ls.proc.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := ls.proc.cmd.Start(); err != nil {
		return wrapFFmpegError(err, ls.proc.stderr.String())
	}

	go ls.readFrames(stdout)

	return nil
}

func (ls *LocalFileStreamer) readFrames(stdout io.ReadCloser) {
	defer close(ls.frameChan)
	defer close(ls.errChan)
	defer stdout.Close()
	defer ls.proc.kill()

	buffer := make([]byte, ls.width*ls.height*bytesPerPixel)

	ticker := time.NewTicker(time.Second / time.Duration(ls.targetFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopChan:
			return

		case <-ticker.C:
			_, err := io.ReadFull(stdout, buffer)
			if err != nil {
				select {
				case <-ls.stopChan:
					return
				default:
				}
				if err == io.EOF {
					// end of file is a normal end of stream
					return
				}
				ls.proc.kill()
				ls.errChan <- wrapFFmpegError(fmt.Errorf("read error: %v", err), ls.proc.stderr.String())
				return
			}

			select {
			case ls.frameChan <- rgbaFrame(buffer, ls.width, ls.height):
			case <-ls.stopChan:
				return
			}
		}
	}
}

func (ls *LocalFileStreamer) Stop() {
	ls.stopOnce.Do(func() {
		close(ls.stopChan)
		if ls.proc != nil {
			ls.proc.kill()
		}
	})
}

func (ls *LocalFileStreamer) FrameChan() <-chan image.Image {
	return ls.frameChan
}

func (ls *LocalFileStreamer) ErrorChan() <-chan error {
	return ls.errChan
}

type probeData struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

func parseProbe(output []byte) (int, int, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}

	if len(data.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video streams found")
	}

	s := data.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	return s.Width, s.Height, nil
}

func probeVideoDimensions(path string) (int, int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}

	return parseProbe(output)
}
