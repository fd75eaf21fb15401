package handler

import (
	"reels-generator/internal/dto"
	"reels-generator/internal/response"
	"reels-generator/internal/storage"
	"reels-generator/internal/types"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h Handler) StartVideoTask(c *gin.Context) {
	var req dto.StartVideoTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		log.GetLogger().Error("StartVideoTask ShouldBindJSON err", zap.Error(err))
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "参数错误 Invalid parameters", err))
		return
	}
	log.GetLogger().Info("StartVideoTask received request", zap.Any("req", req))

	task, err := h.Service.CreateVideoTask(req)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	if err = h.dispatch(task.TaskId); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, dto.StartVideoTaskResData{TaskId: task.TaskId})
}

func (h Handler) GetVideoTask(c *gin.Context) {
	var req dto.GetVideoTaskReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "参数错误 Invalid parameters", err))
		return
	}

	data, err := h.Service.GetTaskStatus(req)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, data)
}

func (h Handler) GetTaskHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	data, err := h.Service.GetTaskHistory(limit)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, data)
}

func (h Handler) DeleteTask(c *gin.Context) {
	taskId := c.Param("taskId")
	if taskId == "" {
		response.ErrorResponse(c, apperrors.New(apperrors.CodeInvalidParams, "taskId不能为空 taskId is required"))
		return
	}
	if err := h.Service.DeleteTask(taskId); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, nil)
}

// RetryTask re-submits a failed or finished task. Rendered scene clips are
// kept, so only missing work is redone.
func (h Handler) RetryTask(c *gin.Context) {
	taskId := c.Param("taskId")
	if taskId == "" {
		response.ErrorResponse(c, apperrors.New(apperrors.CodeInvalidParams, "taskId不能为空 taskId is required"))
		return
	}
	if err := h.Service.PrepareRetry(taskId); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	if err := h.dispatch(taskId); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, dto.StartVideoTaskResData{TaskId: taskId})
}

func (h Handler) dispatch(taskId string) error {
	if h.Dispatcher == nil {
		return apperrors.New(apperrors.CodeUnknown, "没有可用的任务执行器 No task executor configured")
	}
	if err := h.Dispatcher.Dispatch(taskId); err != nil {
		log.GetLogger().Error("dispatch video task failed", zap.String("taskId", taskId), zap.Error(err))
		_ = storage.UpdateTaskStatus(taskId, types.VideoTaskStatusFailed, "提交失败 Dispatch failed", 0)
		return apperrors.Wrap(apperrors.CodeUnknown, "任务提交失败 Failed to dispatch task", err)
	}
	return nil
}
