package steelpan

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// AudioBuffer is a buffer of stereo frames, left channel first. Samples are
// nominally in the range [-1, 1].
type AudioBuffer [][2]float32

// Clear sets every frame in the buffer to silence.
func (b AudioBuffer) Clear() {
	for i := range b {
		b[i] = [2]float32{}
	}
}

// Peak returns the largest absolute sample value in the buffer.
func (b AudioBuffer) Peak() float32 {
	var peak float32
	for _, f := range b {
		for _, v := range f {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}

// Raw converts the buffer into interleaved little-endian bytes: float32 by
// default, or 16-bit signed integers if pcm16 is set.
func (b AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	if pcm16 {
		err = binary.Write(buf, binary.LittleEndian, b.int16Samples())
	} else {
		err = binary.Write(buf, binary.LittleEndian, b)
	}
	if err != nil {
		return nil, fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteWav writes the buffer as a 16-bit PCM stereo .wav file.
func (b AudioBuffer) WriteWav(w io.WriteSeeker, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	data := make([]int, 0, len(b)*2)
	for _, v := range b.int16Samples() {
		data = append(data, int(v))
	}
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("could not encode wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finish wav file: %w", err)
	}
	return nil
}

func (b AudioBuffer) int16Samples() []int16 {
	ret := make([]int16, 0, len(b)*2)
	for _, f := range b {
		for _, v := range f {
			ret = append(ret, int16(clamp(int(v*math.MaxInt16), math.MinInt16, math.MaxInt16)))
		}
	}
	return ret
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
