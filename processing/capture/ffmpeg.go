package capture

import (
	"bytes"
	"image"
	"os/exec"
	"sync"
)

const bytesPerPixel = 4

// stderrBuffer collects ffmpeg diagnostics while the process is running.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// keep only the tail, ffmpeg can be chatty on long runs
	if b.buf.Len() > 64*1024 {
		tail := append([]byte(nil), b.buf.Bytes()[b.buf.Len()-16*1024:]...)
		b.buf.Reset()
		b.buf.Write(tail)
	}
	return b.buf.Write(p)
}

func (b *stderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ffmpegProc owns an ffmpeg child process and makes sure it is reaped once.
type ffmpegProc struct {
	cmd      *exec.Cmd
	stderr   stderrBuffer
	killOnce sync.Once
}

func newFFmpegProc(args []string) *ffmpegProc {
	p := &ffmpegProc{cmd: exec.Command("ffmpeg", args...)}
	p.cmd.Stderr = &p.stderr
	return p
}

func (p *ffmpegProc) kill() {
	p.killOnce.Do(func() {
		if p.cmd != nil && p.cmd.Process != nil {
			p.cmd.Process.Kill()
			p.cmd.Wait()
		}
	})
}

func rgbaFrame(raw []byte, width, height int) *image.RGBA {
	pix := make([]byte, len(raw))
	copy(pix, raw)

	return &image.RGBA{
		Pix:    pix,
		Stride: width * bytesPerPixel,
		Rect:   image.Rect(0, 0, width, height),
	}
}
