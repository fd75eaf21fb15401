package taskrunner

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"reels-generator/internal/appcore"
	"reels-generator/log"
)

const (
	defaultQueueSize   = 128
	defaultConcurrency = 1
)

var (
	ErrRunnerStopped = errors.New("task runner stopped")
	ErrQueueFull     = errors.New("task queue is full")
)

// Config controls in-process task runner behavior.
type Config struct {
	QueueSize   int
	Concurrency int
}

// DefaultConfig renders one video at a time; scene fan-out happens inside
// each video.
func DefaultConfig() Config {
	return Config{
		QueueSize:   defaultQueueSize,
		Concurrency: defaultConcurrency,
	}
}

// VideoTaskPayload identifies a stored video task to run.
type VideoTaskPayload struct {
	TaskID string `json:"task_id"`
}

// VideoRunner executes one stored task. FailCrashedTask records a run that
// panicked.
type VideoRunner interface {
	RunVideoTask(ctx context.Context, taskId string) (appcore.JobResult, error)
	FailCrashedTask(taskId string, cause any)
}

// Runner executes queued tasks with in-memory workers.
type Runner struct {
	service VideoRunner
	config  Config

	queue  chan VideoTaskPayload
	ctx    context.Context
	cancel context.CancelFunc

	workerWg sync.WaitGroup
	closed   atomic.Bool
}

// New creates and starts a task runner.
func New(svc VideoRunner, cfg Config) *Runner {
	cfg = normalizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	runner := &Runner{
		service: svc,
		config:  cfg,
		queue:   make(chan VideoTaskPayload, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Concurrency; i++ {
		runner.workerWg.Add(1)
		go runner.worker(i + 1)
	}

	return runner
}

func normalizeConfig(cfg Config) Config {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return cfg
}

// SubmitVideoTask queues a stored task for rendering.
func (r *Runner) SubmitVideoTask(payload VideoTaskPayload) error {
	if payload.TaskID == "" {
		return errors.New("video task id is required")
	}
	if r.closed.Load() {
		return ErrRunnerStopped
	}

	select {
	case <-r.ctx.Done():
		return ErrRunnerStopped
	case r.queue <- payload:
		log.GetLogger().Info("[TaskRunner] task submitted", zap.String("task_id", payload.TaskID))
		return nil
	default:
		return ErrQueueFull
	}
}

// Dispatch submits taskId; it lets the HTTP layer treat the runner and the
// redis queue alike.
func (r *Runner) Dispatch(taskId string) error {
	return r.SubmitVideoTask(VideoTaskPayload{TaskID: taskId})
}

func (r *Runner) worker(workerID int) {
	defer r.workerWg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		select {
		case <-r.ctx.Done():
			return
		case payload := <-r.queue:
			r.processTask(workerID, payload)
		}
	}
}

func (r *Runner) processTask(workerID int, payload VideoTaskPayload) {
	defer func() {
		if rec := recover(); rec != nil {
			buf := make([]byte, 64<<10)
			buf = buf[:runtime.Stack(buf, false)]
			log.GetLogger().Error("[TaskRunner] task panic",
				zap.Int("worker_id", workerID),
				zap.String("task_id", payload.TaskID),
				zap.Any("panic", rec),
				zap.ByteString("stack", buf))
			r.service.FailCrashedTask(payload.TaskID, rec)
		}
	}()

	result, err := r.service.RunVideoTask(r.ctx, payload.TaskID)
	if err != nil {
		log.GetLogger().Error("[TaskRunner] task failed",
			zap.Int("worker_id", workerID),
			zap.String("task_id", payload.TaskID),
			zap.String("stage", result.Stage.String()),
			zap.Error(err))
		return
	}

	log.GetLogger().Info("[TaskRunner] task completed",
		zap.Int("worker_id", workerID),
		zap.String("task_id", payload.TaskID),
		zap.String("output", result.OutputPath))
}

// Close stops workers and rejects new tasks. Running tasks see their
// context canceled.
func (r *Runner) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}

	r.cancel()
	r.workerWg.Wait()
}

// Pending returns the number of queued tasks waiting for workers.
func (r *Runner) Pending() int {
	return len(r.queue)
}
