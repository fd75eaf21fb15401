// Package mixer lays a looped, attenuated music bed under a finished video.
package mixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/audio"
	"reels-generator/internal/media"
	"reels-generator/internal/types"
	"reels-generator/log"
	"reels-generator/pkg/errors"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultSuffix = "_with_bg_music"

	SampleRate = 44100
	Channels   = 2
	partSuffix = ".part"
)

var musicExtensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".flac"}

type Mixer struct {
	runner     media.Runner
	audioCodec string
	logger     *zap.Logger
}

func NewMixer(runner media.Runner, audioCodec string) *Mixer {
	if audioCodec == "" {
		audioCodec = "aac"
	}
	return &Mixer{runner: runner, audioCodec: audioCodec, logger: log.Component("mixer")}
}

// MixBackgroundAudio writes videoPath with track mixed under its audio to
// outputPath, or next to the video with DefaultSuffix when outputPath is
// empty. Output only reaches outputPath through the final rename, so on
// failure the partial file is removed, whatever already sits at outputPath
// is left alone and "" is returned along with the error.
func (m *Mixer) MixBackgroundAudio(ctx context.Context, videoPath string, track types.BackgroundTrack, outputPath string) (result string, err error) {
	if outputPath == "" {
		outputPath = appdirs.SuffixedPath(videoPath, DefaultSuffix)
	}
	if filepath.Clean(outputPath) == filepath.Clean(videoPath) {
		return "", errors.New(errors.CodeInvalidParams, fmt.Sprintf("mix output %s would overwrite the input video", outputPath))
	}
	partPath := outputPath + partSuffix

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CodeAudioMixFailed, fmt.Sprintf("panic while mixing: %v", r))
		}
		if err != nil {
			_ = os.Remove(partPath)
			result = ""
			m.logger.Error("background mix failed", zap.String("video", videoPath), zap.Error(err))
		}
	}()

	if track.FilePath == "" {
		return "", errors.New(errors.CodeMissingMedia, "no background track configured")
	}
	if _, statErr := os.Stat(track.FilePath); statErr != nil {
		return "", errors.Wrap(errors.CodeMissingMedia, fmt.Sprintf("background track %s", track.FilePath), statErr)
	}

	info, err := m.runner.Probe(ctx, videoPath)
	if err != nil {
		return "", errors.Wrap(errors.CodeDecodeFailed, "probe video", err)
	}
	if info.Duration <= 0 {
		return "", errors.New(errors.CodeDecodeFailed, fmt.Sprintf("video %s has no duration", videoPath))
	}

	composite, err := m.compositeTrack(ctx, videoPath, info, track)
	if err != nil {
		return "", err
	}

	pcm, err := composite.Reader()
	if err != nil {
		return "", errors.Wrap(errors.CodeAudioMixFailed, "encode mixed audio", err)
	}
	// composite holds the only copy of the samples, release it before encoding
	composite = nil

	args := append([]string{"-i", videoPath}, media.PCMInputArgs(SampleRate, Channels)...)
	args = append(args,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", m.audioCodec,
		"-b:a", "192k",
		"-t", strconv.FormatFloat(info.Duration, 'f', 3, 64),
		"-movflags", "+faststart",
		"-f", "mp4",
		partPath,
	)
	if err = m.runner.Run(ctx, media.Job{Args: args, Stdin: pcm}); err != nil {
		return "", errors.Wrap(errors.CodeEncodeFailed, "mux mixed audio", err)
	}
	if err = os.Rename(partPath, outputPath); err != nil {
		return "", errors.Wrap(errors.CodeFileWriteError, "finalize mixed video", err)
	}

	m.logger.Info("background music mixed",
		zap.String("video", videoPath),
		zap.String("music", track.FilePath),
		zap.Float64("gain_db", track.GainDb),
		zap.String("output", outputPath))
	return outputPath, nil
}

// compositeTrack loops the music to the video length, attenuates it and
// sums it with the original audio, if any.
func (m *Mixer) compositeTrack(ctx context.Context, videoPath string, info *media.ProbeInfo, track types.BackgroundTrack) (*audio.Track, error) {
	music, err := media.DecodePCM(ctx, m.runner, track.FilePath, SampleRate, Channels)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecodeFailed, "decode background track", err)
	}
	looped, err := music.LoopToLength(info.Duration)
	if err != nil {
		return nil, errors.Wrap(errors.CodeZeroDurationAudio, fmt.Sprintf("background track %s", track.FilePath), err)
	}
	scaled := looped.Scale(audio.DbToLinear(track.GainDb))

	if !info.HasAudio {
		return scaled, nil
	}
	original, err := media.DecodePCM(ctx, m.runner, videoPath, SampleRate, Channels)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecodeFailed, "decode video audio", err)
	}
	mixed, err := audio.Mix(original.Trim(info.Duration), scaled)
	if err != nil {
		return nil, errors.Wrap(errors.CodeAudioMixFailed, "mix tracks", err)
	}
	return mixed, nil
}

// PickTrack returns a random audio file from dir.
func PickTrack(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(errors.CodeFileNotFound, fmt.Sprintf("music dir %s", dir), err)
	}
	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() {
			return "", false
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		return filepath.Join(dir, e.Name()), lo.Contains(musicExtensions, ext)
	})
	if len(files) == 0 {
		return "", errors.New(errors.CodeFileNotFound, fmt.Sprintf("no audio files in %s", dir))
	}
	return lo.Sample(files), nil
}
