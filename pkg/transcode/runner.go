package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes one ffmpeg invocation. Diagnostic output goes to log.
type Runner interface {
	Run(ctx context.Context, args []string, log io.Writer) error
}

// FFmpegRunner runs the ffmpeg binary directly, without a shell.
type FFmpegRunner struct {
	// Path is the binary to execute. Empty resolves "ffmpeg" on PATH.
	Path string
}

// stderrTail bounds how much ffmpeg output is quoted in errors.
const stderrTail = 512

func (r FFmpegRunner) Run(ctx context.Context, args []string, log io.Writer) error {
	path := r.Path
	if path == "" {
		path = "ffmpeg"
	}
	binary, err := exec.LookPath(path)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	var stderr tailBuffer
	cmd := exec.CommandContext(ctx, binary, append([]string{"-hide_banner", "-nostdin"}, args...)...)
	cmd.Stdout = io.Discard
	if log != nil {
		cmd.Stderr = io.MultiWriter(log, &stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= stderrTail {
		t.buf.Reset()
		t.buf.Write(p[n-stderrTail:])
		return n, nil
	}
	if over := t.buf.Len() + n - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
