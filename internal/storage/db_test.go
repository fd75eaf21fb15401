package storage

import (
	"context"
	"path/filepath"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestResolveDBPathUsesCacheDir(t *testing.T) {
	originalResolver := appDirsResolver
	t.Cleanup(func() {
		appDirsResolver = originalResolver
	})

	tempDir := t.TempDir()
	cacheDir := filepath.Join(tempDir, "cache-root")
	appDirsResolver = func() (appdirs.Paths, error) {
		return appdirs.Paths{
			OutputDir: filepath.Join(tempDir, "output-root"),
			CacheDir:  cacheDir,
		}, nil
	}

	got, err := resolveDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "reels.db"), got)
}

func useTestDB(t *testing.T) {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	require.NoError(t, err)
	previous := DB
	DB = db
	t.Cleanup(func() {
		_ = CloseDB()
		DB = previous
	})
}

func sampleTask(id string) *types.VideoTask {
	return &types.VideoTask{
		TaskId:  id,
		Project: "manual_project",
		VideoId: "v1",
		Status:  types.VideoTaskStatusPending,
		Scenes: []types.SceneTask{
			{SceneId: "s2", Position: 1, ScriptText: "second"},
			{SceneId: "s1", Position: 0, ScriptText: "first"},
		},
	}
}

func TestSaveAndGetTask(t *testing.T) {
	useTestDB(t)

	require.NoError(t, SaveTask(sampleTask("t1")))

	got, err := GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, "manual_project", got.Project)
	require.Len(t, got.Scenes, 2)
	assert.Equal(t, "s1", got.Scenes[0].SceneId)
	assert.Equal(t, "s2", got.Scenes[1].SceneId)
}

func TestSaveTaskUpdatesExisting(t *testing.T) {
	useTestDB(t)
	task := sampleTask("t1")
	require.NoError(t, SaveTask(task))

	task.Status = types.VideoTaskStatusSuccess
	task.OutputPath = "/out/final_video.mp4"
	task.Scenes[0].Status = types.SceneTaskStatusRendered
	require.NoError(t, SaveTask(task))

	got, err := GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, types.VideoTaskStatusSuccess, got.Status)
	assert.Equal(t, "/out/final_video.mp4", got.OutputPath)
	assert.Len(t, got.Scenes, 2)

	history, err := GetTaskHistory(10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateSceneAndStatus(t *testing.T) {
	useTestDB(t)
	require.NoError(t, SaveTask(sampleTask("t1")))

	require.NoError(t, UpdateScene(&types.SceneTask{
		TaskId:   "t1",
		SceneId:  "s1",
		ClipPath: "/clips/s1.mp4",
		Status:   types.SceneTaskStatusRendered,
	}))
	require.NoError(t, UpdateTaskStatus("t1", types.VideoTaskStatusProcessing, "rendering", 40))

	got, err := GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, types.VideoTaskStatusProcessing, got.Status)
	assert.Equal(t, uint8(40), got.Progress)
	assert.Equal(t, "/clips/s1.mp4", got.Scenes[0].ClipPath)
	assert.Equal(t, types.SceneTaskStatusRendered, got.Scenes[0].Status)
}

func TestDeleteTaskRemovesScenes(t *testing.T) {
	useTestDB(t)
	require.NoError(t, SaveTask(sampleTask("t1")))

	require.NoError(t, DeleteTask("t1"))

	_, err := GetTask("t1")
	assert.Error(t, err)
	var count int64
	require.NoError(t, DB.Model(&types.SceneTask{}).Where("task_id = ?", "t1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestMarkStaleTasks(t *testing.T) {
	useTestDB(t)
	running := sampleTask("running")
	running.Status = types.VideoTaskStatusProcessing
	require.NoError(t, SaveTask(running))
	require.NoError(t, SaveTask(sampleTask("pending")))

	n, err := MarkStaleTasks()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := GetTask("running")
	require.NoError(t, err)
	assert.Equal(t, types.VideoTaskStatusFailed, got.Status)
}

func TestNilDBErrors(t *testing.T) {
	previous := DB
	DB = nil
	t.Cleanup(func() { DB = previous })

	assert.Error(t, SaveTask(sampleTask("x")))
	_, err := GetTask("x")
	assert.Error(t, err)
	_, err = MarkStaleTasks()
	assert.Error(t, err)
}

func TestUsageStores(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "usage.db"), logger.Silent)
	require.NoError(t, err)

	stores := map[string]func(now func() time.Time) types.UsageStore{
		"db": func(now func() time.Time) types.UsageStore {
			s := NewDBUsageStore(db, 2)
			s.now = now
			return s
		},
		"memory": func(now func() time.Time) types.UsageStore {
			s := NewMemoryUsageStore(2)
			s.now = now
			return s
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Where("1 = 1").Delete(&types.ApiUsage{}).Error)
			ctx := context.Background()
			clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
			store := build(func() time.Time { return clock })
			candidates := []string{"a", "b"}

			first, err := store.BestModel(ctx, candidates)
			require.NoError(t, err)
			assert.Equal(t, "a", first)
			second, err := store.BestModel(ctx, candidates)
			require.NoError(t, err)
			assert.Equal(t, "b", second)

			// second call inside the window hits the per-minute limit
			require.NoError(t, store.RecordUsage(ctx, "a", false))
			exceeded, err := store.Exceeded(ctx, "a")
			require.NoError(t, err)
			assert.False(t, exceeded)
			require.NoError(t, store.RecordUsage(ctx, "a", false))
			exceeded, err = store.Exceeded(ctx, "a")
			require.NoError(t, err)
			assert.True(t, exceeded)

			next, err := store.BestModel(ctx, candidates)
			require.NoError(t, err)
			assert.Equal(t, "b", next)

			require.NoError(t, store.RecordUsage(ctx, "b", true))
			_, err = store.BestModel(ctx, candidates)
			assert.ErrorIs(t, err, ErrAllModelsExceeded)

			clock = clock.Add(UsageWindow + time.Second)
			exceeded, err = store.Exceeded(ctx, "a")
			require.NoError(t, err)
			assert.False(t, exceeded)
			_, err = store.BestModel(ctx, candidates)
			assert.NoError(t, err)

			assert.NoError(t, store.Close())
		})
	}
}
