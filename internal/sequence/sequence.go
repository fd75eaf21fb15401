// Package sequence joins rendered scene clips into one video.
package sequence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reels-generator/internal/media"
	"reels-generator/internal/types"
	"reels-generator/log"
	"reels-generator/pkg/errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	partSuffix      = ".part"
	audioSampleRate = 44100
)

// Assembler concatenates clips in order. Clips of differing sizes are
// centered on a canvas of the largest size instead of being rescaled.
type Assembler struct {
	runner media.Runner
	cfg    types.RenderConfig
	logger *zap.Logger
}

func NewAssembler(runner media.Runner, cfg types.RenderConfig) *Assembler {
	return &Assembler{runner: runner, cfg: cfg.WithDefaults(), logger: log.Component("sequence")}
}

// Concatenate writes the clips, in exactly the given order, to outputPath.
func (a *Assembler) Concatenate(ctx context.Context, clipPaths []string, outputPath string) (string, error) {
	if len(clipPaths) == 0 {
		return "", errors.ErrNoScenes
	}
	if outputPath == "" {
		return "", errors.ErrInvalidParams
	}

	infos := make([]*media.ProbeInfo, len(clipPaths))
	for i, p := range clipPaths {
		info, err := a.runner.Probe(ctx, p)
		if err != nil {
			return "", errors.Wrap(errors.CodeDecodeFailed, fmt.Sprintf("probe clip %s", p), err)
		}
		if !info.HasVideo {
			return "", errors.New(errors.CodeUnsupportedMedia, fmt.Sprintf("clip %s has no video stream", p))
		}
		infos[i] = info
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", errors.Wrap(errors.CodeFileWriteError, "create output dir", err)
	}
	partPath := outputPath + partSuffix
	args := a.buildArgs(clipPaths, infos, partPath)

	a.logger.Info("concatenating clips", zap.Int("clips", len(clipPaths)), zap.String("output", outputPath))
	if err := a.runner.Run(ctx, media.Job{Args: args}); err != nil {
		_ = os.Remove(partPath)
		return "", errors.Wrap(errors.CodeConcatFailed, "concatenate clips", err)
	}
	if err := os.Rename(partPath, outputPath); err != nil {
		_ = os.Remove(partPath)
		return "", errors.Wrap(errors.CodeFileWriteError, "finalize concatenated video", err)
	}
	return outputPath, nil
}

// CanvasSize is the largest width and height over all clips.
func CanvasSize(infos []*media.ProbeInfo) (int, int) {
	w, h := 0, 0
	for _, info := range infos {
		w = max(w, info.Width)
		h = max(h, info.Height)
	}
	// yuv420p needs even dimensions
	return w + w%2, h + h%2
}

func (a *Assembler) buildArgs(clips []string, infos []*media.ProbeInfo, output string) []string {
	w, h := CanvasSize(infos)
	var args []string
	for _, c := range clips {
		args = append(args, "-i", c)
	}

	// silent clips borrow a generated silent track of their own length
	silentInputs := make(map[int]int)
	next := len(clips)
	for i, info := range infos {
		if info.HasAudio {
			continue
		}
		args = append(args,
			"-f", "lavfi",
			"-t", strconv.FormatFloat(info.Duration, 'f', 3, 64),
			"-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", audioSampleRate),
		)
		silentInputs[i] = next
		next++
	}

	var graph strings.Builder
	var pairs strings.Builder
	for i, info := range infos {
		fmt.Fprintf(&graph, "[%d:v]pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=%d,format=yuv420p[v%d];",
			i, w, h, a.cfg.FPS, i)
		audioIn := fmt.Sprintf("%d:a:0", i)
		if !info.HasAudio {
			audioIn = fmt.Sprintf("%d:a", silentInputs[i])
		}
		fmt.Fprintf(&graph, "[%s]aresample=%d,aformat=channel_layouts=stereo[a%d];", audioIn, audioSampleRate, i)
		fmt.Fprintf(&pairs, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&graph, "%sconcat=n=%d:v=1:a=1[outv][outa]", pairs.String(), len(infos))

	return append(args,
		"-filter_complex", graph.String(),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", a.cfg.VideoCodec,
		"-crf", strconv.Itoa(a.cfg.CRF),
		"-preset", "veryfast",
		"-c:a", a.cfg.AudioCodec,
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	)
}
