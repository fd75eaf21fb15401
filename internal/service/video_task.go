package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reels-generator/config"
	"reels-generator/internal/appcore"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/dto"
	"reels-generator/internal/mixer"
	"reels-generator/internal/storage"
	"reels-generator/internal/types"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	defaultSceneCount = 5
	maxSceneCount     = 30
	uploadFailedMsg   = "上传失败 Upload failed"
)

// CreateVideoTask validates req, allocates the project folder and stores a
// pending task. Nothing is rendered yet.
func (s *Service) CreateVideoTask(req dto.StartVideoTaskReq) (*types.VideoTask, error) {
	if len(req.Scenes) == 0 && strings.TrimSpace(req.Topic) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParams, "场景或主题不能为空 scenes or topic is required")
	}
	if req.SceneCount < 0 || req.SceneCount > maxSceneCount {
		return nil, apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("scene_count must be within [0,%d]", maxSceneCount))
	}

	scenes := make([]types.SceneTask, 0, len(req.Scenes))
	for i, sc := range req.Scenes {
		sceneTask, err := sceneTaskFromReq(sc, i)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, sceneTask)
	}
	ids := lo.Map(scenes, func(sc types.SceneTask, _ int) string { return sc.SceneId })
	if len(lo.Uniq(ids)) != len(ids) {
		return nil, apperrors.New(apperrors.CodeInvalidParams, "场景id重复 duplicate scene id")
	}

	project := strings.TrimSpace(req.Project)
	if project == "" {
		project = config.Conf.App.DefaultProject
	}
	projectDir, err := allocateProjectDir(project)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFileWriteError, "创建项目目录失败 Failed to create project dir", err)
	}

	videoId := appdirs.SanitizeName(req.VideoId)
	if videoId == "" {
		videoId = filepath.Base(projectDir)
	}
	taskId := req.ReuseTaskId
	if taskId == "" {
		taskId = fmt.Sprintf("%s_%s", strings.ReplaceAll(videoId, " ", "_"), uuid.NewString()[:8])
	}
	for i := range scenes {
		scenes[i].TaskId = taskId
	}

	gain := s.MusicGainDb
	if req.Music.GainDb != nil {
		gain = *req.Music.GainDb
	}

	task := &types.VideoTask{
		TaskId:       taskId,
		Project:      project,
		ProjectDir:   projectDir,
		VideoId:      videoId,
		Topic:        strings.TrimSpace(req.Topic),
		SceneCount:   req.SceneCount,
		Voice:        req.Voice,
		MusicEnabled: req.Music.Enabled,
		MusicPath:    req.Music.Path,
		MusicGainDb:  gain,
		Upload:       req.Upload,
		Status:       types.VideoTaskStatusPending,
		StatusMsg:    "排队中 Queued",
		Scenes:       scenes,
	}
	if err = storage.SaveTask(task); err != nil {
		log.GetLogger().Error("CreateVideoTask SaveTask err", zap.String("taskId", taskId), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.CodeDBError, "保存任务失败 Failed to save task", err)
	}

	s.Events.Publish(appcore.JobEvent{JobID: taskId, Stage: appcore.JobStageQueued, Message: task.StatusMsg})
	log.GetLogger().Info("video task created",
		zap.String("taskId", taskId),
		zap.String("projectDir", projectDir),
		zap.Int("scenes", len(scenes)),
		zap.String("topic", task.Topic))
	return task, nil
}

func sceneTaskFromReq(sc dto.SceneReq, position int) (types.SceneTask, error) {
	id := appdirs.SanitizeName(sc.Id)
	if id == "" {
		id = fmt.Sprintf("scene_%d", position+1)
	}
	switch sc.MediaOrigin {
	case types.MediaOriginNone, types.MediaOriginStock:
	case types.MediaOriginFile, types.MediaOriginURL, types.MediaOriginGenerate:
		if strings.TrimSpace(sc.MediaRef) == "" && !(sc.MediaOrigin == types.MediaOriginGenerate && sc.ScriptText != "") {
			return types.SceneTask{}, apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("scene %s: media_ref is required for %s", id, sc.MediaOrigin))
		}
	default:
		return types.SceneTask{}, apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("scene %s: unknown media_origin %q", id, sc.MediaOrigin))
	}
	switch sc.StockKind {
	case "", types.StockPhoto, types.StockVideo:
	default:
		return types.SceneTask{}, apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("scene %s: unknown stock_kind %q", id, sc.StockKind))
	}

	return types.SceneTask{
		SceneId:     id,
		Position:    position,
		ScriptText:  strings.TrimSpace(sc.ScriptText),
		MediaOrigin: sc.MediaOrigin,
		MediaRef:    strings.TrimSpace(sc.MediaRef),
		StockKind:   sc.StockKind,
		Status:      types.SceneTaskStatusPending,
	}, nil
}

// PrepareRetry puts a finished or failed task back to pending. Scene clips
// that already exist are reused by the next run.
func (s *Service) PrepareRetry(taskId string) error {
	task, err := storage.GetTask(taskId)
	if err != nil || task == nil {
		return apperrors.Wrap(apperrors.CodeNotFound, "任务不存在 Task not found", err)
	}
	if task.Status == types.VideoTaskStatusProcessing {
		return apperrors.New(apperrors.CodeInvalidParams, "任务正在处理中 Task is already running")
	}
	if err = storage.UpdateTaskStatus(taskId, types.VideoTaskStatusPending, "正在重试 Retrying...", 0); err != nil {
		return apperrors.Wrap(apperrors.CodeDBError, "更新任务失败 Failed to update task", err)
	}
	return nil
}

// FailCrashedTask marks a task whose run panicked as failed so it does not
// stay in processing until the next restart.
func (s *Service) FailCrashedTask(taskId string, cause any) {
	if err := storage.UpdateTaskStatus(taskId, types.VideoTaskStatusFailed, "任务异常 Task crashed", 0); err != nil {
		log.GetLogger().Error("FailCrashedTask UpdateTaskStatus err", zap.String("taskId", taskId), zap.Error(err))
	}
	s.Events.Publish(appcore.JobEvent{JobID: taskId, Stage: appcore.JobStageFailed, Message: fmt.Sprint(cause)})
}

// RunVideoTask executes a stored task synchronously: script, voiceovers,
// media, scene renders, concatenation, then the optional music mix and
// upload.
func (s *Service) RunVideoTask(ctx context.Context, taskId string) (appcore.JobResult, error) {
	result := appcore.JobResult{JobID: taskId, StartedAt: time.Now()}
	task, err := storage.GetTask(taskId)
	if err != nil || task == nil {
		err = apperrors.Wrap(apperrors.CodeNotFound, "任务不存在 Task not found", err)
		result.Stage, result.Err, result.FinishedAt = appcore.JobStageFailed, err, time.Now()
		return result, err
	}

	task.Status = types.VideoTaskStatusProcessing
	task.FailReason = ""
	rep := &reporter{svc: s, task: task}
	rep.stage(appcore.JobStagePreparing, 5, "准备中 Preparing")

	output, err := s.produce(ctx, task, rep)
	result.FinishedAt = time.Now()
	if err != nil {
		stage := appcore.JobStageFailed
		if errors.Is(err, context.Canceled) {
			stage = appcore.JobStageCanceled
		}
		task.Status = types.VideoTaskStatusFailed
		task.FailReason = err.Error()
		task.StatusMsg = "任务失败 Failed"
		if saveErr := storage.SaveTask(task); saveErr != nil {
			log.GetLogger().Error("RunVideoTask SaveTask err", zap.String("taskId", taskId), zap.Error(saveErr))
		}
		s.Events.Publish(appcore.JobEvent{JobID: taskId, Stage: stage, Message: task.FailReason, Err: err})
		result.Stage, result.Err = stage, err
		return result, err
	}

	task.Status = types.VideoTaskStatusSuccess
	task.Progress = 100
	if !strings.HasPrefix(task.StatusMsg, uploadFailedMsg) {
		task.StatusMsg = "完成 Done"
	}
	if err = storage.SaveTask(task); err != nil {
		log.GetLogger().Error("RunVideoTask SaveTask err", zap.String("taskId", taskId), zap.Error(err))
	}
	s.Events.Publish(appcore.JobEvent{
		JobID:    taskId,
		Stage:    appcore.JobStageSucceeded,
		Message:  task.StatusMsg,
		Progress: &appcore.JobProgress{Stage: appcore.JobStageSucceeded, Percent: 100, UpdatedAt: time.Now()},
	})

	result.Stage = appcore.JobStageSucceeded
	result.OutputPath = output
	result.Artifacts = lo.PickBy(map[string]string{
		"final":  task.OutputPath,
		"mixed":  task.MixedPath,
		"upload": task.UploadUrl,
	}, func(_ string, v string) bool { return v != "" })
	log.GetLogger().Info("video task finished",
		zap.String("taskId", taskId),
		zap.String("output", output),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
	return result, nil
}

// produce runs the pipeline and returns the path of the deliverable video.
func (s *Service) produce(ctx context.Context, task *types.VideoTask, rep *reporter) (string, error) {
	if len(task.Scenes) == 0 {
		rep.stage(appcore.JobStagePreparing, 8, "正在生成脚本 Writing script...")
		if err := s.generateScenes(ctx, task); err != nil {
			return "", err
		}
	}

	rep.stage(appcore.JobStageProcessing, 10, "正在渲染场景 Rendering scenes...")
	results, err := s.renderScenes(ctx, task, rep)
	if err != nil {
		return "", err
	}
	clips := lo.FilterMap(results, func(r types.SceneResult, _ int) (string, bool) {
		return r.Path, r.Err == nil && r.Path != ""
	})
	if len(clips) == 0 {
		return "", apperrors.ErrNoScenes
	}
	if skipped := len(results) - len(clips); skipped > 0 {
		log.GetLogger().Warn("scenes skipped", zap.String("taskId", task.TaskId), zap.Int("skipped", skipped))
	}

	rep.stage(appcore.JobStageFinalizing, 85, "正在拼接视频 Concatenating...")
	finalPath := appdirs.FinalVideoPath(task.ProjectDir, task.VideoId)
	output, err := s.Assembler.Concatenate(ctx, clips, finalPath)
	if err != nil {
		return "", err
	}
	task.OutputPath = output

	if task.MusicEnabled {
		rep.stage(appcore.JobStageFinalizing, 90, "正在添加背景音乐 Mixing music...")
		if mixed := s.mixMusic(ctx, task, output); mixed != "" {
			task.MixedPath = mixed
			output = mixed
		}
	}

	if task.Upload {
		rep.stage(appcore.JobStageFinalizing, 95, "正在上传 Uploading...")
		s.upload(ctx, task, output)
	}
	return output, nil
}

func (s *Service) generateScenes(ctx context.Context, task *types.VideoTask) error {
	if task.Topic == "" {
		return apperrors.New(apperrors.CodeInvalidParams, "任务没有场景 task has neither scenes nor topic")
	}
	count := task.SceneCount
	if count <= 0 {
		count = defaultSceneCount
	}
	lines, err := s.ScriptWriter.GenerateScript(ctx, task.Topic, count)
	if err != nil {
		return err
	}
	task.Scenes = lo.Map(lines, func(line string, i int) types.SceneTask {
		return types.SceneTask{
			TaskId:      task.TaskId,
			SceneId:     fmt.Sprintf("scene_%d", i+1),
			Position:    i,
			ScriptText:  line,
			MediaOrigin: types.MediaOriginStock,
			StockKind:   types.StockPhoto,
		}
	})
	if err = storage.SaveTask(task); err != nil {
		return apperrors.Wrap(apperrors.CodeDBError, "保存脚本失败 Failed to save script", err)
	}
	log.GetLogger().Info("script generated", zap.String("taskId", task.TaskId), zap.Int("scenes", len(task.Scenes)))
	return nil
}

// mixMusic is best effort: any failure keeps the un-mixed video.
func (s *Service) mixMusic(ctx context.Context, task *types.VideoTask, video string) string {
	if task.MusicPath == "" {
		dir, err := resolveMusicDir(s.MusicDir)
		if err == nil {
			task.MusicPath, err = mixer.PickTrack(dir)
		}
		if err != nil {
			log.GetLogger().Warn("no background track available", zap.String("taskId", task.TaskId), zap.Error(err))
			return ""
		}
	}

	suffix := s.MusicSuffix
	if suffix == "" {
		suffix = mixer.DefaultSuffix
	}
	track := types.BackgroundTrack{FilePath: task.MusicPath, GainDb: task.MusicGainDb}
	mixed, err := s.Mixer.MixBackgroundAudio(ctx, video, track, appdirs.SuffixedPath(video, suffix))
	if err != nil {
		log.GetLogger().Warn("background music skipped", zap.String("taskId", task.TaskId), zap.Error(err))
		return ""
	}
	return mixed
}

func (s *Service) upload(ctx context.Context, task *types.VideoTask, video string) {
	if s.Uploader == nil {
		log.GetLogger().Warn("upload requested but no uploader configured", zap.String("taskId", task.TaskId))
		return
	}
	key := path.Join(task.TaskId, filepath.Base(video))
	url, err := s.Uploader.Upload(ctx, video, key)
	if err != nil {
		log.GetLogger().Error("upload failed", zap.String("taskId", task.TaskId), zap.Error(err))
		task.StatusMsg = uploadFailedMsg + ": " + apperrors.GetMessage(err)
		return
	}
	task.UploadUrl = url
}

func (s *Service) GetTaskStatus(req dto.GetVideoTaskReq) (*dto.VideoTaskResData, error) {
	task, err := storage.GetTask(req.TaskId)
	if err != nil || task == nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "任务不存在 Task not found", err)
	}
	data := toVideoTaskResData(*task)
	return &data, nil
}

func (s *Service) GetTaskHistory(limit int) ([]dto.VideoTaskResData, error) {
	if limit <= 0 {
		limit = 50
	}
	tasks, err := storage.GetTaskHistory(limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDBError, "查询历史失败 Failed to load history", err)
	}
	return lo.Map(tasks, func(t types.VideoTask, _ int) dto.VideoTaskResData {
		return toVideoTaskResData(t)
	}), nil
}

// DeleteTask removes the task record and its project folder.
func (s *Service) DeleteTask(taskId string) error {
	task, err := storage.GetTask(taskId)
	if err != nil || task == nil {
		return apperrors.Wrap(apperrors.CodeNotFound, "任务不存在 Task not found", err)
	}
	if task.Status == types.VideoTaskStatusProcessing {
		return apperrors.New(apperrors.CodeInvalidParams, "任务正在处理中 Task is still running")
	}
	if err = storage.DeleteTask(taskId); err != nil {
		return apperrors.Wrap(apperrors.CodeDBError, "删除任务失败 Failed to delete task", err)
	}
	if _, relErr := resolveDownloadPath(task.ProjectDir); relErr == nil && task.ProjectDir != "" {
		if err = os.RemoveAll(task.ProjectDir); err != nil {
			log.GetLogger().Warn("failed to remove project dir", zap.String("dir", task.ProjectDir), zap.Error(err))
		}
	}
	return nil
}

func toVideoTaskResData(task types.VideoTask) dto.VideoTaskResData {
	download := func(p string) string {
		rel, err := resolveDownloadPath(p)
		if err != nil {
			return ""
		}
		return rel
	}
	return dto.VideoTaskResData{
		TaskId:            task.TaskId,
		Project:           task.Project,
		VideoId:           task.VideoId,
		Status:            task.Status.String(),
		StatusMsg:         task.StatusMsg,
		FailReason:        task.FailReason,
		ProcessPercent:    task.Progress,
		DownloadPath:      download(task.OutputPath),
		MixedDownloadPath: download(task.MixedPath),
		UploadUrl:         task.UploadUrl,
		CreateTime:        task.CreateTime,
		Scenes: lo.Map(task.Scenes, func(sc types.SceneTask, _ int) dto.SceneResData {
			return dto.SceneResData{
				SceneId:      sc.SceneId,
				Position:     sc.Position,
				ScriptText:   sc.ScriptText,
				Status:       sc.Status.String(),
				FailReason:   sc.FailReason,
				DownloadPath: download(sc.ClipPath),
			}
		}),
	}
}

// reporter persists progress and publishes it on the event bus. Scene
// workers call it concurrently.
type reporter struct {
	mu   sync.Mutex
	svc  *Service
	task *types.VideoTask
}

func (r *reporter) stage(stage appcore.JobStage, progress uint8, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stageLocked(stage, progress, msg)
}

func (r *reporter) stageLocked(stage appcore.JobStage, progress uint8, msg string) {
	r.task.Progress = progress
	r.task.StatusMsg = msg
	if err := storage.UpdateTaskStatus(r.task.TaskId, r.task.Status, msg, progress); err != nil {
		log.GetLogger().Warn("failed to persist progress", zap.String("taskId", r.task.TaskId), zap.Error(err))
	}
	r.svc.Events.Publish(appcore.JobEvent{
		JobID:   r.task.TaskId,
		Stage:   stage,
		Message: msg,
		Progress: &appcore.JobProgress{
			Stage:     stage,
			Percent:   float64(progress),
			Message:   msg,
			UpdatedAt: time.Now(),
		},
	})
}

func (r *reporter) sceneDone(scene *types.SceneTask, done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := storage.UpdateScene(scene); err != nil {
		log.GetLogger().Warn("failed to persist scene", zap.String("scene", scene.SceneId), zap.Error(err))
	}
	progress := uint8(10 + 75*done/total)
	r.stageLocked(appcore.JobStageProcessing, progress, fmt.Sprintf("已渲染 %d/%d 个场景 Rendered %d/%d scenes", done, total, done, total))
}
