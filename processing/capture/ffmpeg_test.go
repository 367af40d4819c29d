package capture

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFFmpeg(t *testing.T) {
	assert.ErrorIs(t, classifyFFmpeg("[video4linux2,v4l2 @ 0x1] Cannot open video device /dev/video0: Permission denied"), ErrPermissionDenied)
	assert.ErrorIs(t, classifyFFmpeg("/dev/video9: No such file or directory"), ErrNoDevice)
	assert.ErrorIs(t, classifyFFmpeg("Could not find video device with name [HD Cam]"), ErrNoDevice)
	assert.NoError(t, classifyFFmpeg("Output #0, image2pipe"))
}

func TestWrapFFmpegError(t *testing.T) {
	base := errors.New("read error: EOF")

	err := wrapFFmpegError(base, "line1\nline2\n/dev/video0: Permission denied\n")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "Permission denied")

	err = wrapFFmpegError(base, "")
	assert.Equal(t, base, err)

	err = wrapFFmpegError(base, "something odd")
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "something odd")
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c d", lastLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a", lastLines("a", 3))
	assert.Equal(t, "", lastLines("", 3))
}

func TestWebcamArgs(t *testing.T) {
	linux := strings.Join(webcamArgs("linux", "/dev/video0", 24, 640, 480), " ")
	assert.Contains(t, linux, "-f v4l2 -i /dev/video0")
	assert.Contains(t, linux, "-an")
	assert.Contains(t, linux, "fps=24,scale=640:480")
	assert.Contains(t, linux, "-pix_fmt rgba")

	windows := strings.Join(webcamArgs("windows", "HD Cam", 15, 320, 240), " ")
	assert.Contains(t, windows, "-f dshow -i video=HD Cam")
}

func TestParseDshowDevices(t *testing.T) {
	out := `[dshow @ 0x1] "HD Webcam" (video)
[dshow @ 0x1] "Microphone" (audio)
[dshow @ 0x1] "HD Webcam" (video)
[dshow @ 0x1] "OBS Virtual Camera" (video)`

	assert.Equal(t, []string{"HD Webcam", "OBS Virtual Camera"}, parseDshowDevices(out))
	assert.Empty(t, parseDshowDevices("nothing here"))
}

func TestParseProbe(t *testing.T) {
	w, h, err := parseProbe([]byte(`{"streams":[{"width":1280,"height":720}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	_, _, err = parseProbe([]byte(`{"streams":[]}`))
	assert.Error(t, err)

	_, _, err = parseProbe([]byte(`{"streams":[{"width":0,"height":720}]}`))
	assert.Error(t, err)

	_, _, err = parseProbe([]byte(`nope`))
	assert.Error(t, err)
}

func TestStderrBufferKeepsTail(t *testing.T) {
	var b stderrBuffer
	chunk := strings.Repeat("x", 1024)
	for i := 0; i < 100; i++ {
		b.Write([]byte(chunk))
	}
	b.Write([]byte("Permission denied"))

	s := b.String()
	assert.Less(t, len(s), 70*1024)
	assert.True(t, strings.HasSuffix(s, "Permission denied"))
}

func TestRGBAFrameCopies(t *testing.T) {
	raw := make([]byte, 2*2*bytesPerPixel)
	img := rgbaFrame(raw, 2, 2)
	raw[0] = 255
	assert.Equal(t, uint8(0), img.Pix[0])
	assert.Equal(t, 8, img.Stride)
}
