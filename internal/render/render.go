// Package render composites one scene into a finished clip: background
// visual, voiceover and word-by-word captions.
package render

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"reels-generator/internal/caption"
	"reels-generator/internal/media"
	"reels-generator/internal/types"
	"reels-generator/internal/visual"
	"reels-generator/log"
	"reels-generator/pkg/errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// PartSuffix marks an output that is still being written. Completed files
// are renamed into place, so an existing output path is always complete.
const PartSuffix = ".part"

// Renderer renders scenes with a fixed output format. It is safe for
// concurrent use; concurrent renders of the same output path share one
// encode and its result.
type Renderer struct {
	runner media.Runner
	cfg    types.RenderConfig
	flight singleflight.Group
	logger *zap.Logger
}

func NewRenderer(runner media.Runner, cfg types.RenderConfig) *Renderer {
	return &Renderer{
		runner: runner,
		cfg:    cfg.WithDefaults(),
		logger: log.Component("render"),
	}
}

func (r *Renderer) Config() types.RenderConfig { return r.cfg }

// RenderScene writes scene to outputPath and returns it. An existing file at
// outputPath is trusted as a previous render and returned untouched.
func (r *Renderer) RenderScene(ctx context.Context, scene types.Scene, outputPath string) (string, error) {
	if outputPath == "" {
		return "", errors.ErrInvalidParams
	}
	if fileExists(outputPath) {
		r.logger.Debug("scene already rendered", zap.String("scene", scene.ID), zap.String("path", outputPath))
		return outputPath, nil
	}

	path, err, _ := r.flight.Do(outputPath, func() (any, error) {
		// a render that finished just before this flight started
		if fileExists(outputPath) {
			return outputPath, nil
		}
		start := time.Now()
		if err := r.render(ctx, scene, outputPath); err != nil {
			r.logger.Error("scene render failed", zap.String("scene", scene.ID), zap.Error(err))
			return "", err
		}
		r.logger.Info("scene rendered",
			zap.String("scene", scene.ID),
			zap.String("path", outputPath),
			zap.Duration("elapsed", time.Since(start)))
		return outputPath, nil
	})
	if err != nil {
		return "", err
	}
	return path.(string), nil
}

func (r *Renderer) render(ctx context.Context, scene types.Scene, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errors.Wrap(errors.CodeFileWriteError, "create scene output dir", err)
	}
	workDir, err := os.MkdirTemp(filepath.Dir(outputPath), ".scene-*")
	if err != nil {
		return errors.Wrap(errors.CodeFileWriteError, "create scene work dir", err)
	}
	defer os.RemoveAll(workDir)

	audioDuration, hasAudio, err := r.voiceoverDuration(ctx, scene)
	if err != nil {
		return err
	}

	bg, err := r.background(ctx, scene.Media, audioDuration, workDir)
	if err != nil {
		return err
	}

	var layers []string
	if scene.ScriptText != "" && audioDuration > 0 {
		tokens := caption.ComputeCaptionTimings(scene.ScriptText, audioDuration)
		captions, err := captionFilters(tokens, r.cfg, workDir)
		if err != nil {
			return errors.Wrap(errors.CodeFileWriteError, "write caption text", err)
		}
		layers = append(layers, captions...)
	}
	if r.cfg.BrandText != "" {
		brand, err := brandFilter(r.cfg, workDir)
		if err != nil {
			return errors.Wrap(errors.CodeFileWriteError, "write brand text", err)
		}
		layers = append(layers, brand)
	}

	args := append([]string{}, bg.inputArgs...)
	if hasAudio {
		args = append(args, "-i", scene.VoiceoverPath)
	}
	args = append(args,
		"-filter_complex", videoFilterChain(r.cfg, layers),
		"-map", "[v]",
	)
	if hasAudio {
		args = append(args, "-map", "1:a:0", "-c:a", r.cfg.AudioCodec, "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}

	partPath := outputPath + PartSuffix
	args = append(args,
		"-t", formatSeconds(audioDuration),
		"-r", strconv.Itoa(r.cfg.FPS),
		"-c:v", r.cfg.VideoCodec,
		"-crf", strconv.Itoa(r.cfg.CRF),
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-f", "mp4",
		partPath,
	)

	err = r.runner.Run(ctx, media.Job{Args: args, Stdin: bg.stdin})
	if err != nil {
		_ = os.Remove(partPath)
		return errors.Wrap(errors.CodeEncodeFailed, fmt.Sprintf("encode scene %s", scene.ID), err)
	}
	if err := os.Rename(partPath, outputPath); err != nil {
		_ = os.Remove(partPath)
		return errors.Wrap(errors.CodeFileWriteError, "finalize scene clip", err)
	}
	return nil
}

// voiceoverDuration returns the scene length. Scenes without a voiceover
// file fall back to the default duration and render silent.
func (r *Renderer) voiceoverDuration(ctx context.Context, scene types.Scene) (float64, bool, error) {
	if scene.VoiceoverPath == "" || !fileExists(scene.VoiceoverPath) {
		if scene.VoiceoverPath != "" {
			r.logger.Warn("voiceover not found, rendering silent scene",
				zap.String("scene", scene.ID), zap.String("path", scene.VoiceoverPath))
		}
		return r.cfg.DefaultDuration, false, nil
	}
	info, err := r.runner.Probe(ctx, scene.VoiceoverPath)
	if err != nil {
		return 0, false, errors.Wrap(errors.CodeDecodeFailed, "probe voiceover", err)
	}
	if !info.HasAudio || info.Duration <= 0 {
		return 0, false, errors.New(errors.CodeZeroDurationAudio,
			fmt.Sprintf("voiceover %s has no audio", scene.VoiceoverPath))
	}
	return info.Duration, true, nil
}

type backgroundInput struct {
	inputArgs []string
	stdin     io.Reader
}

func (r *Renderer) background(ctx context.Context, src types.MediaSource, duration float64, workDir string) (*backgroundInput, error) {
	if !src.IsAbsent() && !fileExists(src.Path) {
		return nil, errors.New(errors.CodeMissingMedia, fmt.Sprintf("media file not found: %s", src.Path))
	}

	switch {
	case src.IsAbsent():
		return &backgroundInput{inputArgs: []string{
			"-f", "lavfi",
			"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s", r.cfg.Width, r.cfg.Height, r.cfg.FPS, formatSeconds(duration)),
		}}, nil

	case src.Kind == types.MediaImage:
		img, err := decodeImage(src.Path)
		if err != nil {
			return nil, errors.Wrap(errors.CodeDecodeFailed, fmt.Sprintf("decode image %s", src.Path), err)
		}
		cropped := visual.CropToAspect(img, r.cfg.Width, r.cfg.Height)
		motion := visual.NewZoomMotion(cropped, duration, r.cfg.ZoomFactor)
		return &backgroundInput{
			inputArgs: []string{
				"-f", "rawvideo",
				"-pix_fmt", "rgba",
				"-s", fmt.Sprintf("%dx%d", r.cfg.Width, r.cfg.Height),
				"-r", strconv.Itoa(r.cfg.FPS),
				"-i", "pipe:0",
			},
			stdin: newFrameReader(motion.Frames(r.cfg.FPS)),
		}, nil

	default:
		looped := filepath.Join(workDir, "background.mp4")
		if _, err := visual.LoopAndTrim(ctx, r.runner, src.Path, looped, duration, r.cfg.Width, r.cfg.Height, r.cfg.FPS); err != nil {
			return nil, errors.Wrap(errors.CodeDecodeFailed, fmt.Sprintf("prepare video %s", src.Path), err)
		}
		return &backgroundInput{inputArgs: []string{"-i", looped}}, nil
	}
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// frameReader streams raw RGBA frames from a FrameIterator as ffmpeg reads
// them, so at most one frame is held in memory.
type frameReader struct {
	frames  *visual.FrameIterator
	pending []byte
}

func newFrameReader(frames *visual.FrameIterator) *frameReader {
	return &frameReader{frames: frames}
}

func (f *frameReader) Read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		frame, ok := f.frames.Next()
		if !ok {
			return 0, io.EOF
		}
		f.pending = frame.Pix
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
