package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reels-generator/internal/appcore"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/service"
	"reels-generator/internal/storage"
	"reels-generator/internal/types"
	apperrors "reels-generator/pkg/errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type stubDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *stubDispatcher) Dispatch(taskId string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, taskId)
	return nil
}

func (d *stubDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

type apiResponse struct {
	Error int32           `json:"error"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

func newTestHandler(t *testing.T, disp Dispatcher) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv(appdirs.PortableEnv, "1")

	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "handler.db"), logger.Silent)
	require.NoError(t, err)
	previous := storage.DB
	storage.DB = db
	t.Cleanup(func() {
		_ = storage.CloseDB()
		storage.DB = previous
	})

	h := NewHandler(&service.Service{Events: appcore.NewBus()}, disp)
	r := gin.New()
	r.POST("/api/video/task", h.StartVideoTask)
	r.GET("/api/video/task", h.GetVideoTask)
	r.GET("/api/video/history", h.GetTaskHistory)
	r.DELETE("/api/video/task/:taskId", h.DeleteTask)
	r.POST("/api/video/task/:taskId/retry", h.RetryTask)
	r.GET("/api/video/task/:taskId/events", h.TaskEvents)
	return h, r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func storeTask(t *testing.T, id string, status types.VideoTaskStatus) {
	t.Helper()
	require.NoError(t, storage.SaveTask(&types.VideoTask{
		TaskId:    id,
		Project:   "demo",
		VideoId:   "v1",
		Status:    status,
		StatusMsg: status.String(),
		Progress:  40,
		Scenes: []types.SceneTask{
			{TaskId: id, SceneId: "s1", ScriptText: "hello", MediaOrigin: types.MediaOriginNone},
		},
	}))
}

var sceneBody = map[string]any{
	"project":  "demo",
	"video_id": "launch",
	"scenes": []map[string]any{
		{"id": "s1", "script_text": "First line.", "media_origin": "none"},
		{"id": "s2", "script_text": "Second line.", "media_origin": "stock", "media_ref": "city"},
	},
}

func TestStartVideoTaskDispatches(t *testing.T) {
	disp := &stubDispatcher{}
	_, r := newTestHandler(t, disp)

	resp := doJSON(t, r, "POST", "/api/video/task", sceneBody)
	require.Equal(t, int32(0), resp.Error, resp.Msg)

	var data struct {
		TaskId string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.True(t, strings.HasPrefix(data.TaskId, "launch_"))
	assert.Equal(t, []string{data.TaskId}, disp.dispatched())

	task, err := storage.GetTask(data.TaskId)
	require.NoError(t, err)
	assert.Equal(t, types.VideoTaskStatusPending, task.Status)
	assert.Len(t, task.Scenes, 2)
}

func TestStartVideoTaskRejectsInvalidBody(t *testing.T) {
	disp := &stubDispatcher{}
	_, r := newTestHandler(t, disp)

	req, _ := http.NewRequest("POST", "/api/video/task", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"error":1001`)

	resp := doJSON(t, r, "POST", "/api/video/task", map[string]any{"project": "demo"})
	assert.Equal(t, int32(apperrors.CodeInvalidParams), resp.Error)
	assert.Empty(t, disp.dispatched())
}

func TestStartVideoTaskDispatchFailureMarksTaskFailed(t *testing.T) {
	disp := &stubDispatcher{err: errors.New("redis down")}
	_, r := newTestHandler(t, disp)

	resp := doJSON(t, r, "POST", "/api/video/task", sceneBody)
	assert.Equal(t, int32(apperrors.CodeUnknown), resp.Error)

	tasks, err := storage.GetTaskHistory(10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, types.VideoTaskStatusFailed, tasks[0].Status)
}

func TestStartVideoTaskWithoutDispatcher(t *testing.T) {
	_, r := newTestHandler(t, nil)

	resp := doJSON(t, r, "POST", "/api/video/task", sceneBody)
	assert.NotEqual(t, int32(0), resp.Error)
}

func TestGetVideoTask(t *testing.T) {
	_, r := newTestHandler(t, &stubDispatcher{})
	storeTask(t, "v1_abcd1234", types.VideoTaskStatusProcessing)

	resp := doJSON(t, r, "GET", "/api/video/task?taskId=v1_abcd1234", nil)
	require.Equal(t, int32(0), resp.Error, resp.Msg)
	var data struct {
		TaskId string `json:"task_id"`
		Status string `json:"status"`
		Scenes []struct {
			SceneId string `json:"scene_id"`
		} `json:"scenes"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "v1_abcd1234", data.TaskId)
	assert.Equal(t, "processing", data.Status)
	require.Len(t, data.Scenes, 1)

	resp = doJSON(t, r, "GET", "/api/video/task?taskId=missing", nil)
	assert.Equal(t, int32(apperrors.CodeNotFound), resp.Error)

	resp = doJSON(t, r, "GET", "/api/video/task", nil)
	assert.Equal(t, int32(apperrors.CodeInvalidParams), resp.Error)
}

func TestGetTaskHistory(t *testing.T) {
	_, r := newTestHandler(t, &stubDispatcher{})
	storeTask(t, "a", types.VideoTaskStatusSuccess)
	storeTask(t, "b", types.VideoTaskStatusFailed)

	resp := doJSON(t, r, "GET", "/api/video/history?limit=1", nil)
	require.Equal(t, int32(0), resp.Error)
	var data []json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Len(t, data, 1)
}

func TestRetryTask(t *testing.T) {
	disp := &stubDispatcher{}
	_, r := newTestHandler(t, disp)
	storeTask(t, "failed_task", types.VideoTaskStatusFailed)
	storeTask(t, "running_task", types.VideoTaskStatusProcessing)

	resp := doJSON(t, r, "POST", "/api/video/task/failed_task/retry", nil)
	require.Equal(t, int32(0), resp.Error, resp.Msg)
	assert.Equal(t, []string{"failed_task"}, disp.dispatched())
	task, err := storage.GetTask("failed_task")
	require.NoError(t, err)
	assert.Equal(t, types.VideoTaskStatusPending, task.Status)

	resp = doJSON(t, r, "POST", "/api/video/task/running_task/retry", nil)
	assert.Equal(t, int32(apperrors.CodeInvalidParams), resp.Error)

	resp = doJSON(t, r, "POST", "/api/video/task/nope/retry", nil)
	assert.Equal(t, int32(apperrors.CodeNotFound), resp.Error)
	assert.Len(t, disp.dispatched(), 1)
}

func TestDeleteTask(t *testing.T) {
	_, r := newTestHandler(t, &stubDispatcher{})
	storeTask(t, "done", types.VideoTaskStatusSuccess)
	storeTask(t, "running", types.VideoTaskStatusProcessing)

	resp := doJSON(t, r, "DELETE", "/api/video/task/done", nil)
	require.Equal(t, int32(0), resp.Error, resp.Msg)
	_, err := storage.GetTask("done")
	assert.Error(t, err)

	resp = doJSON(t, r, "DELETE", "/api/video/task/running", nil)
	assert.Equal(t, int32(apperrors.CodeInvalidParams), resp.Error)
}

func dialEvents(t *testing.T, r *gin.Engine, taskId string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/video/task/" + taskId + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestTaskEventsStreamsUntilTerminal(t *testing.T) {
	h, r := newTestHandler(t, &stubDispatcher{})
	storeTask(t, "live", types.VideoTaskStatusProcessing)

	conn := dialEvents(t, r, "live")
	snapshot := readEvent(t, conn)
	assert.Equal(t, "live", snapshot["job_id"])
	assert.Equal(t, "processing", snapshot["stage"])

	require.Eventually(t, func() bool {
		return h.Service.Events.Subscribers("live") == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Service.Events.Publish(appcore.JobEvent{JobID: "live", Stage: appcore.JobStageProcessing, Message: "scene s1 rendered"})
	h.Service.Events.Publish(appcore.JobEvent{JobID: "other", Stage: appcore.JobStageFailed})
	h.Service.Events.Publish(appcore.JobEvent{JobID: "live", Stage: appcore.JobStageSucceeded, Message: "done"})

	progress := readEvent(t, conn)
	assert.Equal(t, "scene s1 rendered", progress["message"])
	final := readEvent(t, conn)
	assert.Equal(t, "succeeded", final["stage"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "stream should close after a terminal stage")
}

func TestTaskEventsFinishedTaskSendsSnapshotOnly(t *testing.T) {
	_, r := newTestHandler(t, &stubDispatcher{})
	storeTask(t, "finished", types.VideoTaskStatusSuccess)

	conn := dialEvents(t, r, "finished")
	snapshot := readEvent(t, conn)
	assert.Equal(t, "succeeded", snapshot["stage"])

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestTaskEventsSubscribedBeforeSnapshot(t *testing.T) {
	h, r := newTestHandler(t, &stubDispatcher{})
	storeTask(t, "racing", types.VideoTaskStatusProcessing)

	conn := dialEvents(t, r, "racing")
	snapshot := readEvent(t, conn)
	assert.Equal(t, "processing", snapshot["stage"])

	// no wait: the listener exists by the time the snapshot is written
	assert.Equal(t, 1, h.Service.Events.Subscribers("racing"))
	h.Service.Events.Publish(appcore.JobEvent{JobID: "racing", Stage: appcore.JobStageSucceeded, Message: "done"})

	final := readEvent(t, conn)
	assert.Equal(t, "succeeded", final["stage"])
	assert.Equal(t, "done", final["message"])
}

func TestTaskEventsUnknownTask(t *testing.T) {
	h, r := newTestHandler(t, &stubDispatcher{})

	req, _ := http.NewRequest("GET", "/api/video/task/missing/events", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, h.Service.Events.Subscribers("missing"))
}
