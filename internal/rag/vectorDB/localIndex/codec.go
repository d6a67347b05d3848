package localIndex

import (
	"encoding/binary"
	"math"
)

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte, dim int) ([]float32, bool) {
	if len(data) != dim*4 {
		return nil, false
	}
	out := make([]float32, dim)
	for i := range out {
		f := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
