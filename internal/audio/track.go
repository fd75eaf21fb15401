// Package audio is an in-memory PCM model used for background music
// mixing: looping, trimming, gain and sample-sum mixing.
package audio

import (
	"errors"
	"fmt"
	"math"
)

var ErrZeroDuration = errors.New("audio track has zero duration")

// Track holds interleaved float32 samples in [-1, 1].
type Track struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

func NewTrack(sampleRate, channels int, samples []float32) *Track {
	return &Track{SampleRate: sampleRate, Channels: channels, Samples: samples}
}

// Silence returns a zeroed track of the given length.
func Silence(sampleRate, channels int, seconds float64) *Track {
	t := &Track{SampleRate: sampleRate, Channels: channels}
	t.Samples = make([]float32, FramesFor(sampleRate, seconds)*channels)
	return t
}

// FramesFor converts seconds to a frame count at sampleRate.
func FramesFor(sampleRate int, seconds float64) int {
	if seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(sampleRate)))
}

func (t *Track) Frames() int {
	if t == nil || t.Channels <= 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

func (t *Track) Duration() float64 {
	if t == nil || t.SampleRate <= 0 {
		return 0
	}
	return float64(t.Frames()) / float64(t.SampleRate)
}

func (t *Track) IsEmpty() bool { return t.Frames() == 0 }

// Trim returns the first seconds of the track. A shorter track is returned
// whole.
func (t *Track) Trim(seconds float64) *Track {
	frames := FramesFor(t.SampleRate, seconds)
	if frames > t.Frames() {
		frames = t.Frames()
	}
	out := make([]float32, frames*t.Channels)
	copy(out, t.Samples)
	return NewTrack(t.SampleRate, t.Channels, out)
}

// Loop concatenates the track with itself times times.
func (t *Track) Loop(times int) *Track {
	if times < 1 {
		times = 1
	}
	out := make([]float32, 0, len(t.Samples)*times)
	for i := 0; i < times; i++ {
		out = append(out, t.Samples...)
	}
	return NewTrack(t.SampleRate, t.Channels, out)
}

// LoopToLength repeats the track ceil(seconds/duration) times and trims the
// result to exactly seconds. A longer track is trimmed directly.
func (t *Track) LoopToLength(seconds float64) (*Track, error) {
	if t.IsEmpty() {
		return nil, ErrZeroDuration
	}
	target := FramesFor(t.SampleRate, seconds)
	if target <= t.Frames() {
		return t.Trim(seconds), nil
	}
	repeats := int(math.Ceil(float64(target) / float64(t.Frames())))
	return t.Loop(repeats).Trim(seconds), nil
}

// Scale returns a copy with every sample multiplied by gain.
func (t *Track) Scale(gain float64) *Track {
	out := make([]float32, len(t.Samples))
	g := float32(gain)
	for i, s := range t.Samples {
		out[i] = s * g
	}
	return NewTrack(t.SampleRate, t.Channels, out)
}

// Peak is the largest absolute sample value.
func (t *Track) Peak() float32 {
	var peak float32
	for _, s := range t.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Mix sums tracks sample by sample. The result is as long as the longest
// input; shorter inputs contribute silence past their end. Values are not
// clamped here, EncodeF32LE saturates them.
func Mix(tracks ...*Track) (*Track, error) {
	var base *Track
	frames := 0
	for _, t := range tracks {
		if t == nil {
			continue
		}
		if base == nil {
			base = t
		} else if t.SampleRate != base.SampleRate || t.Channels != base.Channels {
			return nil, fmt.Errorf("cannot mix %dHz/%dch with %dHz/%dch",
				t.SampleRate, t.Channels, base.SampleRate, base.Channels)
		}
		if f := t.Frames(); f > frames {
			frames = f
		}
	}
	if base == nil {
		return nil, errors.New("no tracks to mix")
	}

	out := make([]float32, frames*base.Channels)
	for _, t := range tracks {
		if t == nil {
			continue
		}
		for i, s := range t.Samples {
			out[i] += s
		}
	}
	return NewTrack(base.SampleRate, base.Channels, out), nil
}

// DbToLinear converts a decibel offset to an amplitude multiplier.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
