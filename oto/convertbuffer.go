package oto

import (
	"encoding/binary"
	"math"
)

// FloatBufferToFloat32LE writes buff as little-endian float32 bytes into
// out, which must hold at least 4*len(buff) bytes. It returns the number of
// bytes written.
func FloatBufferToFloat32LE(buff []float32, out []byte) int {
	for i, v := range buff {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return 4 * len(buff)
}

// FloatBufferTo16BitLE appends buff to out as 16-bit little-endian integers,
// clamping to [-1, 1], and returns the extended slice. Reusing out avoids
// allocating once it has grown.
func FloatBufferTo16BitLE(buff []float32, out []byte) []byte {
	for _, v := range buff {
		var uv int16
		if v < -1.0 {
			uv = -math.MaxInt16
		} else if v > 1.0 {
			uv = math.MaxInt16
		} else {
			uv = int16(v * math.MaxInt16)
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(uv))
	}
	return out
}
