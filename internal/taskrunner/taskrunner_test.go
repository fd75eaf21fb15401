package taskrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reels-generator/internal/appcore"
)

type recordingService struct {
	mu      sync.Mutex
	ran     []string
	crashed map[string]any
	block   chan struct{}
	fail    bool
}

func (s *recordingService) FailCrashedTask(taskId string, cause any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crashed == nil {
		s.crashed = map[string]any{}
	}
	s.crashed[taskId] = cause
}

func (s *recordingService) Crashed() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.crashed))
	for k, v := range s.crashed {
		out[k] = v
	}
	return out
}

func (s *recordingService) RunVideoTask(ctx context.Context, taskId string) (appcore.JobResult, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return appcore.JobResult{Stage: appcore.JobStageCanceled}, ctx.Err()
		}
	}
	s.mu.Lock()
	s.ran = append(s.ran, taskId)
	s.mu.Unlock()
	if s.fail {
		return appcore.JobResult{Stage: appcore.JobStageFailed}, errors.New("boom")
	}
	if taskId == "panic" {
		panic("render exploded")
	}
	return appcore.JobResult{Stage: appcore.JobStageSucceeded, OutputPath: taskId + ".mp4"}, nil
}

func (s *recordingService) Ran() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ran...)
}

func TestRunnerProcessesInOrder(t *testing.T) {
	svc := &recordingService{}
	runner := New(svc, Config{QueueSize: 4, Concurrency: 1})
	defer runner.Close()

	for _, id := range []string{"panic", "a", "b"} {
		require.NoError(t, runner.SubmitVideoTask(VideoTaskPayload{TaskID: id}))
	}

	require.Eventually(t, func() bool { return len(svc.Ran()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"panic", "a", "b"}, svc.Ran())
}

func TestRunnerMarksPanickedTaskFailed(t *testing.T) {
	svc := &recordingService{}
	runner := New(svc, DefaultConfig())
	defer runner.Close()

	require.NoError(t, runner.Dispatch("panic"))
	require.NoError(t, runner.Dispatch("ok"))

	require.Eventually(t, func() bool { return len(svc.Ran()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(svc.Crashed()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]any{"panic": "render exploded"}, svc.Crashed())
}

func TestRunnerRejectsWhenFullOrStopped(t *testing.T) {
	svc := &recordingService{block: make(chan struct{})}
	runner := New(svc, Config{QueueSize: 1, Concurrency: 1})

	assert.Error(t, runner.SubmitVideoTask(VideoTaskPayload{}))
	require.NoError(t, runner.SubmitVideoTask(VideoTaskPayload{TaskID: "running"}))
	require.Eventually(t, func() bool { return runner.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, runner.SubmitVideoTask(VideoTaskPayload{TaskID: "queued"}))
	assert.ErrorIs(t, runner.SubmitVideoTask(VideoTaskPayload{TaskID: "overflow"}), ErrQueueFull)

	runner.Close()
	runner.Close()
	assert.ErrorIs(t, runner.SubmitVideoTask(VideoTaskPayload{TaskID: "late"}), ErrRunnerStopped)
	assert.Empty(t, svc.Ran())
}

func TestNormalizeConfig(t *testing.T) {
	assert.Equal(t, DefaultConfig(), normalizeConfig(Config{}))
	assert.Equal(t, Config{QueueSize: 3, Concurrency: 2}, normalizeConfig(Config{QueueSize: 3, Concurrency: 2}))
}

func TestDispatch(t *testing.T) {
	svc := &recordingService{}
	runner := New(svc, DefaultConfig())
	defer runner.Close()

	require.NoError(t, runner.Dispatch("v1"))
	require.Eventually(t, func() bool { return len(svc.Ran()) == 1 }, 2*time.Second, 10*time.Millisecond)
}
