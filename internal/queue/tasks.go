// Package queue provides task handlers for Asynq background processing.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"reels-generator/internal/appcore"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
)

// VideoRunner executes one stored video task.
type VideoRunner interface {
	RunVideoTask(ctx context.Context, taskId string) (appcore.JobResult, error)
}

// TaskHandlers provides handlers for different task types
type TaskHandlers struct {
	service VideoRunner
}

// NewTaskHandlers creates a new TaskHandlers instance
func NewTaskHandlers(svc VideoRunner) *TaskHandlers {
	return &TaskHandlers{service: svc}
}

// HandleVideoRender renders a stored video task. Invalid payloads and
// missing tasks are not retried.
func (h *TaskHandlers) HandleVideoRender(ctx context.Context, t *asynq.Task) error {
	var payload VideoRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log.GetLogger().Info("[Queue] Processing video task", zap.String("task_id", payload.TaskID))

	result, err := h.service.RunVideoTask(ctx, payload.TaskID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) || apperrors.Is(err, apperrors.CodeNoScenes) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	log.GetLogger().Info("[Queue] Video task completed",
		zap.String("task_id", payload.TaskID),
		zap.String("output", result.OutputPath))

	return nil
}

// RegisterHandlers registers all task handlers with the Asynq server mux
func (h *TaskHandlers) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVideoRender, h.HandleVideoRender)
}

// StartWorker starts the Asynq worker with registered handlers
func StartWorker(q *Queue, svc VideoRunner) error {
	handlers := NewTaskHandlers(svc)

	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	log.GetLogger().Info("[Queue] Starting worker",
		zap.String("redis_addr", q.config.RedisAddr),
		zap.Int("concurrency", q.config.Concurrency))

	return q.server.Run(mux)
}
