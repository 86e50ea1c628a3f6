package audio

import (
	"math"
)

// DecodePCM converts little-endian PCM bytes to float samples in [-1,1].
// bitDepth 16 is signed PCM, 32 is IEEE float, anything else is treated as
// 8-bit unsigned.
func DecodePCM(data []byte, bitDepth int) []float32 {
	if len(data) == 0 {
		return []float32{}
	}

	switch bitDepth {
	case 16:
		out := make([]float32, 0, len(data)/2)
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(data[i]) | int16(data[i+1])<<8
			out = append(out, float32(sample)/32768.0)
		}
		return out
	case 32:
		out := make([]float32, 0, len(data)/4)
		for i := 0; i+3 < len(data); i += 4 {
			bits := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
			out = append(out, math.Float32frombits(bits))
		}
		return out
	default:
		out := make([]float32, len(data))
		for i, b := range data {
			out[i] = (float32(b) - 128.0) / 128.0
		}
		return out
	}
}

// intsToFloat scales integer PCM at the given bit depth to [-1,1].
func intsToFloat(data []int, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	out := make([]float32, len(data))
	for i, v := range data {
		x := float64(v) * scale
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		out[i] = float32(x)
	}
	return out
}

// downmix averages interleaved channels to mono.
func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	n := len(in) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float64
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}
