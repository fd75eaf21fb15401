package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// DecodeF32LE reads interleaved float32 little-endian samples until EOF.
func DecodeF32LE(r io.Reader, sampleRate, channels int) (*Track, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid pcm format %dHz/%dch", sampleRate, channels)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	frameBytes := 4 * channels
	usable := len(data) - len(data)%frameBytes
	samples := make([]float32, usable/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return NewTrack(sampleRate, channels, samples), nil
}

// EncodeF32LE writes the samples as float32 little-endian, saturating them
// to [-1, 1].
func EncodeF32LE(w io.Writer, t *Track) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	var b [4]byte
	for _, s := range t.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(s))
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Reader returns the encoded samples as a reader.
func (t *Track) Reader() (io.Reader, error) {
	var buf bytes.Buffer
	buf.Grow(len(t.Samples) * 4)
	if err := EncodeF32LE(&buf, t); err != nil {
		return nil, err
	}
	return &buf, nil
}
