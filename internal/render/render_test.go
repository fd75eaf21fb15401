package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"reels-generator/internal/media"
	"reels-generator/internal/media/mediatest"
	"reels-generator/internal/types"
	apperrors "reels-generator/pkg/errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() types.RenderConfig {
	cfg := types.DefaultRenderConfig()
	cfg.Width, cfg.Height = 36, 64
	cfg.DefaultDuration = 2.0
	return cfg
}

func writeVoiceover(t *testing.T, runner *mediatest.FakeRunner, dir string, duration float64) string {
	t.Helper()
	path := filepath.Join(dir, "voiceover.mp3")
	require.NoError(t, os.WriteFile(path, []byte("mp3"), 0o644))
	runner.SetProbe(path, media.ProbeInfo{Duration: duration, HasAudio: true, SampleRate: 24000, Channels: 1})
	return path
}

func TestRenderSceneHelloWorldOnBlack(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()
	voice := writeVoiceover(t, runner, dir, 2.0)
	out := filepath.Join(dir, "clips", "s1", "video.mp4")

	r := NewRenderer(runner, smallConfig())
	got, err := r.RenderScene(context.Background(), types.Scene{
		ID:            "s1",
		ScriptText:    "Hello world",
		Media:         types.NoMedia(),
		VoiceoverPath: voice,
	}, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.FileExists(t, out)
	assert.NoFileExists(t, out+PartSuffix)

	require.Equal(t, 1, runner.JobCount())
	job := runner.LastJob()
	assert.Equal(t, "lavfi", mediatest.ArgValue(job, "-f"))
	assert.Equal(t, "2.000", mediatest.ArgValue(job, "-t"))
	assert.Equal(t, "1:a:0", job.Args[indexOf(job.Args, "[v]")+2])
	graph := mediatest.ArgValue(job, "-filter_complex")
	assert.Equal(t, 2, strings.Count(graph, "drawtext="))
	assert.Contains(t, graph, "enable='gte(t,0.000)*lt(t,1.000)'")
	assert.Contains(t, graph, "enable='gte(t,1.000)*lt(t,2.000)'")
	assert.Equal(t, out+PartSuffix, mediatest.OutputPath(job))

	// the scratch dir with caption files is gone
	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}

func TestRenderSceneSkipsExistingOutput(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()
	out := filepath.Join(dir, "video.mp4")
	require.NoError(t, os.WriteFile(out, []byte("done"), 0o644))

	r := NewRenderer(runner, smallConfig())
	got, err := r.RenderScene(context.Background(), types.Scene{ID: "s1", ScriptText: "again"}, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Zero(t, runner.JobCount())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "done", string(data))
}

func TestRenderSceneIgnoresStalePartial(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()
	out := filepath.Join(dir, "video.mp4")
	require.NoError(t, os.WriteFile(out+PartSuffix, []byte("trunc"), 0o644))

	_, err := NewRenderer(runner, smallConfig()).RenderScene(context.Background(), types.Scene{ID: "s1"}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.JobCount())
	assert.FileExists(t, out)
}

func TestRenderSceneEncodeFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()
	runner.RunFunc = func(ctx context.Context, job media.Job) error {
		_ = os.WriteFile(mediatest.OutputPath(job), []byte("half"), 0o644)
		return errors.New("encoder crashed")
	}
	out := filepath.Join(dir, "video.mp4")

	got, err := NewRenderer(runner, smallConfig()).RenderScene(context.Background(), types.Scene{ID: "s1", ScriptText: "boom"}, out)
	require.Error(t, err)
	assert.Empty(t, got)
	assert.True(t, apperrors.Is(err, apperrors.CodeEncodeFailed))
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, out+PartSuffix)
}

func TestRenderSceneStreamsZoomFramesForImages(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "photo.png")
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	runner := mediatest.NewFakeRunner()
	cfg := smallConfig()
	_, err = NewRenderer(runner, cfg).RenderScene(context.Background(), types.Scene{
		ID:    "s1",
		Media: types.ResolveMediaSource(imgPath),
	}, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)

	job := runner.LastJob()
	assert.Equal(t, "36x64", mediatest.ArgValue(job, "-s"))
	assert.Equal(t, "-an", job.Args[indexOf(job.Args, "[v]")+1])
	frames := int64(2.0 * float64(cfg.FPS))
	assert.Equal(t, frames*36*64*4, runner.StdinBytes)
}

func TestRenderSceneLoopsVideoBackground(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "stock.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("mp4"), 0o644))
	runner := mediatest.NewFakeRunner()
	runner.SetProbe(clip, media.ProbeInfo{Duration: 0.8, HasVideo: true, Width: 1920, Height: 1080})
	voice := writeVoiceover(t, runner, dir, 2.0)

	_, err := NewRenderer(runner, smallConfig()).RenderScene(context.Background(), types.Scene{
		ID:            "s1",
		ScriptText:    "looping clip",
		Media:         types.VideoMedia(clip),
		VoiceoverPath: voice,
	}, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)

	require.Equal(t, 2, runner.JobCount())
	loop := runner.Jobs[0]
	assert.Equal(t, "2", mediatest.ArgValue(loop, "-stream_loop"))
	assert.Equal(t, "2.000", mediatest.ArgValue(loop, "-t"))
	assert.Equal(t, mediatest.OutputPath(loop), mediatest.ArgValue(runner.Jobs[1], "-i"))
}

func TestRenderSceneMissingMedia(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()

	_, err := NewRenderer(runner, smallConfig()).RenderScene(context.Background(), types.Scene{
		ID:    "s1",
		Media: types.ImageMedia(filepath.Join(dir, "nope.png")),
	}, filepath.Join(dir, "out.mp4"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeMissingMedia))
	assert.Zero(t, runner.JobCount())
}

func TestRenderSceneMissingVoiceoverFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()

	_, err := NewRenderer(runner, smallConfig()).RenderScene(context.Background(), types.Scene{
		ID:            "s1",
		ScriptText:    "quiet",
		VoiceoverPath: filepath.Join(dir, "missing.mp3"),
	}, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)
	job := runner.LastJob()
	assert.Equal(t, "2.000", mediatest.ArgValue(job, "-t"))
	assert.Contains(t, job.Args, "-an")
}

func TestRenderSceneBrandText(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()
	cfg := smallConfig()
	cfg.BrandText = "@reels"

	_, err := NewRenderer(runner, cfg).RenderScene(context.Background(), types.Scene{ID: "s1"}, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)
	graph := mediatest.ArgValue(runner.LastJob(), "-filter_complex")
	assert.Contains(t, graph, "fontcolor=white@0.60")
	assert.Contains(t, graph, "y=h*0.800")
}

func TestRenderSceneConcurrentSamePathRendersOnce(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()
	release := make(chan struct{})
	runner.RunFunc = func(ctx context.Context, job media.Job) error {
		<-release
		return os.WriteFile(mediatest.OutputPath(job), []byte("mp4"), 0o644)
	}
	r := NewRenderer(runner, smallConfig())
	out := filepath.Join(dir, "out.mp4")

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.RenderScene(context.Background(), types.Scene{ID: "s1"}, out)
			assert.NoError(t, err)
			results[i] = got
		}()
	}
	close(release)
	wg.Wait()
	assert.Equal(t, 1, runner.JobCount())
	for _, got := range results {
		assert.Equal(t, out, got)
	}
	assert.FileExists(t, out)
}

func TestRenderSceneDistinctPathsRenderIndependently(t *testing.T) {
	dir := t.TempDir()
	runner := mediatest.NewFakeRunner()
	r := NewRenderer(runner, smallConfig())

	var wg sync.WaitGroup
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.RenderScene(context.Background(), types.Scene{ID: name}, filepath.Join(dir, name))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, runner.JobCount())
}

func TestCaptionFiltersRenderTextVerbatim(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.BrandText = "100% @reels"
	tokens := []types.CaptionToken{
		{Text: "Save 50% today", Start: 0, End: 1},
		{Text: `C:\dir %{pts}`, Start: 1, End: 2},
	}

	filters, err := captionFilters(tokens, cfg, dir)
	require.NoError(t, err)
	brand, err := brandFilter(cfg, dir)
	require.NoError(t, err)
	filters = append(filters, brand)

	require.Len(t, filters, 3)
	for _, f := range filters {
		assert.Contains(t, f, "expansion=none")
		assert.NotContains(t, f, "%")
	}
	text, err := os.ReadFile(filepath.Join(dir, "caption_001.txt"))
	require.NoError(t, err)
	assert.Equal(t, `C:\dir %{pts}`, string(text))
}

func TestQuoteFilterValue(t *testing.T) {
	assert.Equal(t, `'/tmp/it'\''s/a.txt'`, quoteFilterValue("/tmp/it's/a.txt"))
}

func TestRenderSceneWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
	ctx := context.Background()
	dir := t.TempDir()
	exe := media.NewExecutor()
	voice := filepath.Join(dir, "voiceover.m4a")
	require.NoError(t, exe.Run(ctx, media.Job{Args: []string{
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2", "-c:a", "aac", voice,
	}}))

	cfg := types.DefaultRenderConfig()
	cfg.Width, cfg.Height = 180, 320
	out := filepath.Join(dir, "video.mp4")
	_, err := NewRenderer(exe, cfg).RenderScene(ctx, types.Scene{
		ID:            "s1",
		ScriptText:    "Hello world",
		VoiceoverPath: voice,
	}, out)
	require.NoError(t, err)

	info, err := exe.Probe(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 180, info.Width)
	assert.Equal(t, 320, info.Height)
	assert.True(t, info.HasAudio)
	assert.InDelta(t, 2.0, info.Duration, 0.1)
}
