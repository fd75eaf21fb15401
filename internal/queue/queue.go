// Package queue provides background task processing using Asynq.
// Video tasks are stored first and only their ids travel through Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"reels-generator/config"
	"reels-generator/log"
)

// Task type names
const (
	TypeVideoRender = "video:render"
)

// VideoRenderPayload contains the data for a video render task
type VideoRenderPayload struct {
	TaskID string `json:"task_id"`
}

// QueueConfig holds Redis configuration for Asynq
type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Queue manages task enqueueing and processing
type Queue struct {
	client *asynq.Client
	server *asynq.Server
	config QueueConfig
}

// DefaultConfig returns default queue configuration
func DefaultConfig() QueueConfig {
	return QueueConfig{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 3,
	}
}

// ConfigFromApp reads the [queue] section.
func ConfigFromApp(q config.Queue) QueueConfig {
	cfg := DefaultConfig()
	if q.RedisAddr != "" {
		cfg.RedisAddr = q.RedisAddr
	}
	cfg.RedisPassword = q.RedisPassword
	cfg.RedisDB = q.RedisDB
	if q.Concurrency > 0 {
		cfg.Concurrency = q.Concurrency
	}
	return cfg
}

// NewQueue creates a new Queue instance
func NewQueue(cfg QueueConfig) *Queue {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			RetryDelayFunc: RetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.GetLogger().Error("Task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)

	return &Queue{
		client: client,
		server: server,
		config: cfg,
	}
}

// RetryDelay is an exponential backoff: 10s, 20s, 40s, 80s, ...
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return time.Duration(10<<uint(n)) * time.Second
}

// NewVideoRenderTask builds the asynq task for a stored video task.
func NewVideoRenderTask(payload VideoRenderPayload) (*asynq.Task, error) {
	if payload.TaskID == "" {
		return nil, fmt.Errorf("video task id is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeVideoRender, data,
		asynq.MaxRetry(2),
		asynq.Timeout(60*time.Minute),
		asynq.Queue("default"),
		asynq.TaskID(payload.TaskID),
	), nil
}

// EnqueueVideoTask adds a video render task to the queue
func (q *Queue) EnqueueVideoTask(payload VideoRenderPayload) error {
	task, err := NewVideoRenderTask(payload)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.GetLogger().Info("Task enqueued",
		zap.String("task_id", payload.TaskID),
		zap.String("queue_id", info.ID),
		zap.String("queue", info.Queue))

	return nil
}

// Dispatch enqueues a stored video task by id.
func (q *Queue) Dispatch(taskId string) error {
	return q.EnqueueVideoTask(VideoRenderPayload{TaskID: taskId})
}

// Close gracefully shuts down the queue
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	q.server.Shutdown()
	return nil
}

// Client returns the underlying Asynq client for advanced usage
func (q *Queue) Client() *asynq.Client {
	return q.client
}

// Server returns the underlying Asynq server for advanced usage
func (q *Queue) Server() *asynq.Server {
	return q.server
}
