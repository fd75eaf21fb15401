// Package mediatest provides an in-memory media.Runner for tests.
package mediatest

import (
	"context"
	"fmt"
	"io"
	"os"
	"reels-generator/internal/media"
	"strings"
	"sync"
)

// FakeRunner records every job. By default Run drains stdin and writes a
// small placeholder file at the job's output path (its last argument).
type FakeRunner struct {
	mu     sync.Mutex
	Jobs   []media.Job
	Probes map[string]*media.ProbeInfo

	// RunFunc replaces the default Run behavior when set.
	RunFunc func(ctx context.Context, job media.Job) error
	// StdinBytes counts what the default Run drained from stdin.
	StdinBytes int64
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Probes: map[string]*media.ProbeInfo{}}
}

func (f *FakeRunner) Run(ctx context.Context, job media.Job) error {
	f.mu.Lock()
	f.Jobs = append(f.Jobs, job)
	runFunc := f.RunFunc
	f.mu.Unlock()

	if runFunc != nil {
		return runFunc(ctx, job)
	}
	return f.DefaultRun(ctx, job)
}

// DefaultRun drains stdin and touches the output path.
func (f *FakeRunner) DefaultRun(ctx context.Context, job media.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.Stdin != nil {
		n, err := io.Copy(io.Discard, job.Stdin)
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.StdinBytes += n
		f.mu.Unlock()
	}
	out := OutputPath(job)
	if out == "" || strings.HasPrefix(out, "pipe:") {
		return nil
	}
	return os.WriteFile(out, []byte("fake media"), 0o644)
}

func (f *FakeRunner) Probe(ctx context.Context, path string) (*media.ProbeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.Probes[path]; ok {
		cp := *info
		cp.Path = path
		return &cp, nil
	}
	return nil, fmt.Errorf("ffprobe %s: no such file", path)
}

// SetProbe registers the probe result for path.
func (f *FakeRunner) SetProbe(path string, info media.ProbeInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probes[path] = &info
}

func (f *FakeRunner) JobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Jobs)
}

// LastJob returns the most recent job.
func (f *FakeRunner) LastJob() media.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Jobs) == 0 {
		return media.Job{}
	}
	return f.Jobs[len(f.Jobs)-1]
}

// OutputPath is the last argument of a job.
func OutputPath(job media.Job) string {
	if len(job.Args) == 0 {
		return ""
	}
	return job.Args[len(job.Args)-1]
}

// ArgValue returns the value following the first occurrence of flag.
func ArgValue(job media.Job, flag string) string {
	for i := 0; i < len(job.Args)-1; i++ {
		if job.Args[i] == flag {
			return job.Args[i+1]
		}
	}
	return ""
}
