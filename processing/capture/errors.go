package capture

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrPermissionDenied is returned when the OS refuses access to the device.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrNoDevice is returned when the configured device or file does not exist.
	ErrNoDevice = errors.New("camera device not found")
	// ErrOpenTimeout is returned when no frame arrives within the open timeout.
	ErrOpenTimeout = errors.New("camera did not produce a frame in time")
	// ErrStreamEnded is returned when the stream closes before the first frame.
	ErrStreamEnded = errors.New("camera stream ended")
)

// classifyFFmpeg maps ffmpeg diagnostics to one of the sentinel errors.
func classifyFFmpeg(stderr string) error {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "permission denied"), strings.Contains(s, "access is denied"):
		return ErrPermissionDenied
	case strings.Contains(s, "no such file or directory"),
		strings.Contains(s, "could not find video device"),
		strings.Contains(s, "cannot open video device"):
		return ErrNoDevice
	default:
		return nil
	}
}

// wrapFFmpegError attaches the ffmpeg diagnostics to err, classifying it when
// the output names a known cause.
func wrapFFmpegError(err error, stderr string) error {
	tail := lastLines(stderr, 3)
	if kind := classifyFFmpeg(stderr); kind != nil {
		return errors.Wrapf(kind, "%v: %s", err, tail)
	}
	if tail == "" {
		return err
	}
	return errors.Wrap(err, tail)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " "))
}
