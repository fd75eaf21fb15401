package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/types"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
	"reels-generator/pkg/util"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const generatedImageName = "generated.jpg"

// renderScenes prepares and renders every scene of task, at most
// RenderConcurrency at a time. Results keep scene order. Under the abort
// policy the first scene error cancels the rest and is returned.
func (s *Service) renderScenes(ctx context.Context, task *types.VideoTask, rep *reporter) ([]types.SceneResult, error) {
	results := make([]types.SceneResult, len(task.Scenes))
	total := len(task.Scenes)
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.RenderConcurrency))
	for i := range task.Scenes {
		sceneTask := &task.Scenes[i]
		idx := i
		g.Go(func() error {
			clip, err := s.processScene(gctx, task, sceneTask)
			results[idx] = types.SceneResult{SceneID: sceneTask.SceneId, Path: clip, Err: err}
			rep.sceneDone(sceneTask, int(done.Add(1)), total)
			if err != nil && s.FailurePolicy == FailurePolicyAbort {
				return fmt.Errorf("scene %s: %w", sceneTask.SceneId, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// processScene resolves the inputs of one scene and renders its clip,
// recording the outcome on sceneTask.
func (s *Service) processScene(ctx context.Context, task *types.VideoTask, sceneTask *types.SceneTask) (string, error) {
	sceneTask.FailReason = ""
	fail := func(err error) (string, error) {
		sceneTask.FailReason = err.Error()
		sceneTask.Status = types.SceneTaskStatusSkipped
		if s.FailurePolicy == FailurePolicyAbort {
			sceneTask.Status = types.SceneTaskStatusFailed
		}
		log.GetLogger().Error("scene failed",
			zap.String("taskId", task.TaskId),
			zap.String("scene", sceneTask.SceneId),
			zap.Error(err))
		return "", err
	}

	assetDir := appdirs.SceneAssetDir(task.ProjectDir, task.VideoId, sceneTask.SceneId)
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return fail(apperrors.Wrap(apperrors.CodeFileWriteError, "create scene dir", err))
	}

	sceneTask.VoiceoverPath = s.prepareVoiceover(ctx, task, sceneTask)

	mediaSource, err := s.resolveMedia(ctx, sceneTask, assetDir)
	if err != nil {
		return fail(err)
	}

	clipPath := appdirs.SceneClipPath(task.ProjectDir, task.VideoId, sceneTask.SceneId)
	if err = os.MkdirAll(filepath.Dir(clipPath), 0o755); err != nil {
		return fail(apperrors.Wrap(apperrors.CodeFileWriteError, "create clip dir", err))
	}

	scene := types.Scene{
		ID:            sceneTask.SceneId,
		ScriptText:    sceneTask.ScriptText,
		Media:         mediaSource,
		VoiceoverPath: sceneTask.VoiceoverPath,
	}
	clip, err := s.Renderer.RenderScene(ctx, scene, clipPath)
	if err != nil {
		return fail(err)
	}
	sceneTask.ClipPath = clip
	sceneTask.Status = types.SceneTaskStatusRendered
	return clip, nil
}

// prepareVoiceover synthesizes the narration of a scene. A scene whose
// synthesis fails renders silently at the default duration, so failures
// are logged and "" is returned.
func (s *Service) prepareVoiceover(ctx context.Context, task *types.VideoTask, sceneTask *types.SceneTask) string {
	if strings.TrimSpace(sceneTask.ScriptText) == "" {
		return ""
	}
	voiceoverPath := appdirs.VoiceoverPath(task.ProjectDir, task.VideoId, sceneTask.SceneId)
	if info, err := os.Stat(voiceoverPath); err == nil && info.Size() > 0 {
		return voiceoverPath
	}

	voice := task.Voice
	if voice == "" {
		voice = s.DefaultVoice
	}
	partPath := voiceoverPath + ".part"
	if err := s.TtsClient.Synthesize(ctx, sceneTask.ScriptText, voice, partPath); err != nil {
		_ = os.Remove(partPath)
		log.GetLogger().Warn("voiceover failed, scene will be silent",
			zap.String("taskId", task.TaskId),
			zap.String("scene", sceneTask.SceneId),
			zap.String("voice", voice),
			zap.Error(err))
		return ""
	}
	if err := os.Rename(partPath, voiceoverPath); err != nil {
		_ = os.Remove(partPath)
		log.GetLogger().Warn("failed to store voiceover", zap.String("scene", sceneTask.SceneId), zap.Error(err))
		return ""
	}
	return voiceoverPath
}

// resolveMedia turns the scene's media origin into a local file inside
// assetDir. A media path resolved by an earlier run is reused.
func (s *Service) resolveMedia(ctx context.Context, sceneTask *types.SceneTask, assetDir string) (types.MediaSource, error) {
	if sceneTask.MediaPath != "" {
		if _, err := os.Stat(sceneTask.MediaPath); err == nil {
			return types.ResolveMediaSource(sceneTask.MediaPath), nil
		}
	}

	var (
		localPath string
		err       error
	)
	switch sceneTask.MediaOrigin {
	case types.MediaOriginNone:
		return types.NoMedia(), nil
	case types.MediaOriginFile:
		src := sceneTask.MediaRef
		if _, statErr := os.Stat(src); statErr != nil {
			return types.NoMedia(), apperrors.Wrap(apperrors.CodeMissingMedia, fmt.Sprintf("media file %s", src), statErr)
		}
		localPath = filepath.Join(assetDir, "media"+strings.ToLower(filepath.Ext(src)))
		if err = util.CopyFile(src, localPath); err != nil {
			return types.NoMedia(), apperrors.Wrap(apperrors.CodeFileWriteError, "copy media", err)
		}
	case types.MediaOriginURL:
		localPath, err = s.Fetcher.Fetch(ctx, sceneTask.MediaRef, assetDir)
	case types.MediaOriginStock:
		localPath, err = s.fetchStock(ctx, sceneTask, assetDir)
	case types.MediaOriginGenerate:
		prompt := sceneTask.MediaRef
		if prompt == "" {
			prompt = sceneTask.ScriptText
		}
		localPath = filepath.Join(assetDir, generatedImageName)
		err = s.ImageGen.GenerateImage(ctx, prompt, localPath)
	default:
		return types.NoMedia(), apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("unknown media origin %q", sceneTask.MediaOrigin))
	}
	if err != nil {
		return types.NoMedia(), err
	}

	sceneTask.MediaPath = localPath
	return types.ResolveMediaSource(localPath), nil
}

func (s *Service) fetchStock(ctx context.Context, sceneTask *types.SceneTask, assetDir string) (string, error) {
	query := sceneTask.MediaRef
	if query == "" {
		query = sceneTask.ScriptText
	}
	if strings.TrimSpace(query) == "" {
		return "", apperrors.New(apperrors.CodeInvalidParams, "stock search needs a query or script text")
	}
	kind := sceneTask.StockKind
	if kind == "" {
		kind = types.StockPhoto
	}
	url, err := s.StockSearch.Search(ctx, query, kind)
	if err != nil {
		return "", err
	}
	return s.Fetcher.Fetch(ctx, url, assetDir)
}
