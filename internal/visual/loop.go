package visual

import (
	"context"
	"fmt"
	"math"
	"reels-generator/internal/media"
	"strconv"
)

// LoopPlan describes how a source clip is stretched to a target duration:
// play it Repeats times back to back, then cut at Trim seconds.
type LoopPlan struct {
	Repeats int
	Trim    float64
}

// PlanLoop repeats the source ceil(target/source) times when it is shorter
// than target and cuts it directly otherwise.
func PlanLoop(sourceDuration, targetDuration float64) (LoopPlan, error) {
	if sourceDuration <= 0 || math.IsNaN(sourceDuration) || math.IsInf(sourceDuration, 0) {
		return LoopPlan{}, fmt.Errorf("invalid source duration %v", sourceDuration)
	}
	if targetDuration <= 0 || math.IsNaN(targetDuration) || math.IsInf(targetDuration, 0) {
		return LoopPlan{}, fmt.Errorf("invalid target duration %v", targetDuration)
	}
	repeats := 1
	if sourceDuration < targetDuration {
		repeats = int(math.Ceil(targetDuration/sourceDuration - 1e-9))
	}
	return LoopPlan{Repeats: repeats, Trim: targetDuration}, nil
}

// CoverFilter scales a stream to fill w x h and center-crops the overflow,
// the video counterpart of CropToAspect.
func CoverFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
		width, height, width, height)
}

// LoopAndTrimArgs builds the ffmpeg arguments that loop src per plan,
// normalize it to the output frame and write a silent H.264 clip to dst.
func LoopAndTrimArgs(src, dst string, plan LoopPlan, width, height, fps int) []string {
	return []string{
		"-stream_loop", strconv.Itoa(plan.Repeats - 1),
		"-i", src,
		"-t", formatSeconds(plan.Trim),
		"-vf", fmt.Sprintf("%s,fps=%d", CoverFilter(width, height), fps),
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-f", "mp4",
		dst,
	}
}

// LoopAndTrim probes src and writes to dst a clip lasting exactly
// targetDuration at the given frame size and rate.
func LoopAndTrim(ctx context.Context, r media.Runner, src, dst string, targetDuration float64, width, height, fps int) (LoopPlan, error) {
	info, err := r.Probe(ctx, src)
	if err != nil {
		return LoopPlan{}, err
	}
	if !info.HasVideo {
		return LoopPlan{}, fmt.Errorf("%s has no video stream", src)
	}
	plan, err := PlanLoop(info.Duration, targetDuration)
	if err != nil {
		return LoopPlan{}, fmt.Errorf("%s: %w", src, err)
	}
	if err := r.Run(ctx, media.Job{Args: LoopAndTrimArgs(src, dst, plan, width, height, fps)}); err != nil {
		return LoopPlan{}, err
	}
	return plan, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
