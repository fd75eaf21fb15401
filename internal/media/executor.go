// Package media drives the ffmpeg and ffprobe executables.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"reels-generator/internal/storage"
	"reels-generator/log"
	"strings"

	"go.uber.org/zap"
)

// Job is one ffmpeg invocation. Stdin feeds pipe:0 inputs and Stdout
// receives pipe:1 outputs; both may be nil.
type Job struct {
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
}

// Runner executes ffmpeg jobs and probes media files.
type Runner interface {
	Run(ctx context.Context, job Job) error
	Probe(ctx context.Context, path string) (*ProbeInfo, error)
}

// Executor is the Runner backed by the real binaries.
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	threads     int
}

func NewExecutor() *Executor {
	return &Executor{
		ffmpegPath:  binaryOr(storage.FfmpegPath, "ffmpeg"),
		ffprobePath: binaryOr(storage.FfprobePath, "ffprobe"),
	}
}

func binaryOr(configured, command string) string {
	if strings.TrimSpace(configured) == "" {
		return command
	}
	return configured
}

// WithThreads limits the encoder thread count, 0 lets ffmpeg decide.
func (e *Executor) WithThreads(n int) *Executor {
	e.threads = n
	return e
}

// ExitError carries the tail of ffmpeg's stderr.
type ExitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg failed: %v: %s", e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

func (e *Executor) Run(ctx context.Context, job Job) error {
	if len(job.Args) == 0 {
		return errors.New("no ffmpeg arguments provided")
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}
	if job.Stdin != nil {
		// -nostdin would close pipe:0
		args = args[:len(args)-1]
	}
	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	args = append(args, job.Args...)

	log.GetLogger().Debug("executing ffmpeg", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	cmd.Stdin = job.Stdin
	if job.Stdout != nil {
		cmd.Stdout = job.Stdout
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.GetLogger().Error("ffmpeg execution failed",
			zap.Strings("args", args),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return &ExitError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
