package handler

import (
	"net/http"
	"reels-generator/internal/appcore"
	"reels-generator/internal/storage"
	"reels-generator/internal/types"
	"reels-generator/log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventWriteWait = 10 * time.Second
	eventPingEvery = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stageOf maps a stored task status to the stage reported over the stream.
func stageOf(status types.VideoTaskStatus) appcore.JobStage {
	switch status {
	case types.VideoTaskStatusProcessing:
		return appcore.JobStageProcessing
	case types.VideoTaskStatusSuccess:
		return appcore.JobStageSucceeded
	case types.VideoTaskStatusFailed:
		return appcore.JobStageFailed
	default:
		return appcore.JobStageQueued
	}
}

// TaskEvents streams progress of one task over a websocket. The first
// message is a snapshot of the stored task; the stream ends after a
// terminal stage. The subscription is taken before the snapshot is read so
// an update landing in between is delivered, at worst twice.
func (h Handler) TaskEvents(c *gin.Context) {
	taskId := c.Param("taskId")
	events, unsubscribe := h.Service.Events.Subscribe(taskId)
	defer unsubscribe()

	task, err := storage.GetTask(taskId)
	if err != nil || task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.GetLogger().Warn("websocket upgrade failed", zap.String("taskId", taskId), zap.Error(err))
		return
	}
	defer conn.Close()

	snapshot := appcore.JobEvent{
		JobID:   taskId,
		Stage:   stageOf(task.Status),
		Message: task.StatusMsg,
		Progress: &appcore.JobProgress{
			Stage:     stageOf(task.Status),
			Percent:   float64(task.Progress),
			Message:   task.StatusMsg,
			UpdatedAt: time.Unix(task.UpdateTime, 0),
		},
		OccurredAt: time.Now(),
	}
	if !writeEvent(conn, snapshot) || snapshot.Stage.IsTerminal() {
		return
	}

	// the reader only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok || !writeEvent(conn, event) || event.Stage.IsTerminal() {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event appcore.JobEvent) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	if err := conn.WriteJSON(event); err != nil {
		log.GetLogger().Debug("websocket write failed", zap.String("taskId", event.JobID), zap.Error(err))
		return false
	}
	return true
}
