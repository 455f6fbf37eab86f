package oto

import (
	"encoding/binary"
	"math"

	"github.com/panyard/steelpan"
)

// frameSize is the size in bytes of one stereo float32 frame.
const frameSize = 8

// encodeFloat32LE writes the frames of buf into dst as interleaved
// little-endian float32 samples. dst must hold len(buf)*frameSize bytes.
func encodeFloat32LE(dst []byte, buf steelpan.AudioBuffer) {
	for i, f := range buf {
		binary.LittleEndian.PutUint32(dst[i*frameSize:], math.Float32bits(f[0]))
		binary.LittleEndian.PutUint32(dst[i*frameSize+4:], math.Float32bits(f[1]))
	}
}
