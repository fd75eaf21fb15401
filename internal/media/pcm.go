package media

import (
	"bytes"
	"context"
	"fmt"
	"reels-generator/internal/audio"
	"strconv"
)

// PCMInputArgs declares a raw float32 little-endian input on pipe:0.
func PCMInputArgs(sampleRate, channels int) []string {
	return []string{
		"-f", "f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
	}
}

// DecodePCM decodes the first audio stream of path, resampled to
// sampleRate/channels, into memory.
func DecodePCM(ctx context.Context, r Runner, path string, sampleRate, channels int) (*audio.Track, error) {
	var out bytes.Buffer
	err := r.Run(ctx, Job{
		Args: []string{
			"-i", path,
			"-map", "0:a:0",
			"-vn",
			"-f", "f32le",
			"-acodec", "pcm_f32le",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", strconv.Itoa(channels),
			"pipe:1",
		},
		Stdout: &out,
	})
	if err != nil {
		return nil, fmt.Errorf("decode audio %s: %w", path, err)
	}
	return audio.DecodeF32LE(&out, sampleRate, channels)
}
