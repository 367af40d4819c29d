package capture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
)

// FFmpegWebcamStreamer reads a video-only capture device through ffmpeg and
// emits raw RGBA frames.
type FFmpegWebcamStreamer struct {
	stopOnce sync.Once

	deviceName string
	width      int
	height     int
	targetFPS  uint

	proc      *ffmpegProc
	frameChan chan image.Image
	errChan   chan error

	stopChan chan struct{}
}

func NewFFmpegWebcam(deviceName string, targetFps uint, scaledWidth int, scaledHeight int) *FFmpegWebcamStreamer {
	return &FFmpegWebcamStreamer{
		deviceName: deviceName,
		width:      scaledWidth,
		height:     scaledHeight,
		targetFPS:  targetFps,

		frameChan: make(chan image.Image, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func webcamArgs(goos, device string, fps uint, width, height int) []string {
	input := []string{"-f", "v4l2", "-i", device}
	if goos == "windows" {
		input = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", device)}
	}

	// -an: video only, the microphone is never opened
	return append(input,
		"-an",
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

func (ws *FFmpegWebcamStreamer) Start() error {
	ws.proc = newFFmpegProc(webcamArgs(runtime.GOOS, ws.deviceName, ws.targetFPS, ws.width, ws.height))

	stdout, err := ws.proc.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := ws.proc.cmd.Start(); err != nil {
		return wrapFFmpegError(fmt.Errorf("ffmpeg start error: %w", err), ws.proc.stderr.String())
	}

	go ws.readLoop(stdout)

	return nil
}

func (ws *FFmpegWebcamStreamer) readLoop(stdout io.ReadCloser) {
	defer close(ws.frameChan)
	defer close(ws.errChan)
	defer stdout.Close()
	defer ws.proc.kill()

	buffer := make([]byte, ws.width*ws.height*bytesPerPixel)

	for {
		select {
		case <-ws.stopChan:
			return

		default:
			_, err := io.ReadFull(stdout, buffer)
			if err != nil {
				select {
				case <-ws.stopChan:
					return
				default:
					// reap first so stderr is complete
					ws.proc.kill()
					ws.errChan <- wrapFFmpegError(fmt.Errorf("read error: %v", err), ws.proc.stderr.String())
					return
				}
			}

			img := rgbaFrame(buffer, ws.width, ws.height)

			// drop stale frames, consumers only care about the newest one
			select {
			case ws.frameChan <- img:
			default:
				select {
				case <-ws.frameChan:
				default:
				}
				select {
				case ws.frameChan <- img:
				default:
				}
			}
		}
	}
}

func (ws *FFmpegWebcamStreamer) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.stopChan)
		if ws.proc != nil {
			ws.proc.kill()
		}
	})
}

func (ws *FFmpegWebcamStreamer) FrameChan() <-chan image.Image { return ws.frameChan }
func (ws *FFmpegWebcamStreamer) ErrorChan() <-chan error       { return ws.errChan }

var dshowDeviceRe = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// parseDshowDevices extracts video device names from `ffmpeg -list_devices` output.
func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowDeviceRe.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}

	return cameras
}

// ListCameras returns the capture devices the settings panel can offer.
func ListCameras() ([]string, error) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.Run()

		return parseDshowDevices(stderr.String()), nil
	}

	return listVideoDevices("/dev/video*")
}

func listVideoDevices(pattern string) ([]string, error) {
	devices, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	return devices, nil
}
