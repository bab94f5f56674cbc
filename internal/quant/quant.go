// Package quant converts real values to and from the integer representations
// used by quantized operands: real = scale * (q - zeroPoint).
package quant

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// round is half away from zero.
func round(v float64) float64 {
	return math.Round(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Asymm8 quantizes v to an unsigned 8-bit value with the given scale and
// zero point, saturating at [0, 255].
func Asymm8(v float64, scale float32, zeroPoint int32) uint8 {
	q := round(v/float64(scale)) + float64(zeroPoint)
	return uint8(clamp(q, 0, math.MaxUint8))
}

func DequantizeAsymm8(q uint8, scale float32, zeroPoint int32) float64 {
	return float64(scale) * float64(int32(q)-zeroPoint)
}

// Symm8 quantizes v to a signed 8-bit value with zero point 0.
func Symm8(v float64, scale float32) int8 {
	q := round(v / float64(scale))
	return int8(clamp(q, math.MinInt8, math.MaxInt8))
}

func DequantizeSymm8(q int8, scale float32) float64 {
	return float64(scale) * float64(q)
}

// Int32 quantizes v for a 32-bit accumulator operand such as a bias.
func Int32(v float64, scale float32) int32 {
	q := round(v / float64(scale))
	return int32(clamp(q, math.MinInt32, math.MaxInt32))
}

// channelIndex returns the channel coordinate of flat index i in a tensor of
// shape dims along axis.
func channelIndex(i int, dims []uint32, axis uint32) int {
	stride := 1
	for _, d := range dims[axis+1:] {
		stride *= int(d)
	}
	return (i / stride) % int(dims[axis])
}

// PerChannel quantizes values of a tensor with shape dims, using
// scales[c] for every element whose coordinate along axis is c.
func PerChannel(values []float64, dims []uint32, scales []float32, axis uint32) ([]int8, error) {
	if err := checkPerChannel(len(values), dims, scales, axis); err != nil {
		return nil, err
	}
	out := make([]int8, len(values))
	for i, v := range values {
		out[i] = Symm8(v, scales[channelIndex(i, dims, axis)])
	}
	return out, nil
}

// PerChannelInt32 is PerChannel for 32-bit operands, used for biases whose
// per-channel scales are input scale times filter channel scale.
func PerChannelInt32(values []float64, dims []uint32, scales []float32, axis uint32) ([]int32, error) {
	if err := checkPerChannel(len(values), dims, scales, axis); err != nil {
		return nil, err
	}
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = Int32(v, scales[channelIndex(i, dims, axis)])
	}
	return out, nil
}

func checkPerChannel(n int, dims []uint32, scales []float32, axis uint32) error {
	if int(axis) >= len(dims) {
		return fmt.Errorf("channel axis %d out of rank %d", axis, len(dims))
	}
	if int(dims[axis]) != len(scales) {
		return fmt.Errorf("%d scales for channel extent %d", len(scales), dims[axis])
	}
	count := 1
	for _, d := range dims {
		count *= int(d)
	}
	if count != n {
		return fmt.Errorf("%d values for shape %v", n, dims)
	}
	for i, s := range scales {
		if !(s > 0) {
			return fmt.Errorf("scale[%d]=%v must be positive", i, s)
		}
	}
	return nil
}

// Float16Bits returns the IEEE half-precision bits nearest to v.
func Float16Bits(v float64) uint16 {
	return float16.Fromfloat32(float32(v)).Bits()
}

func Float16FromBits(b uint16) float32 {
	return float16.Frombits(b).Float32()
}

// NHWCToNCHW permutes a 4-D tensor from channel-last to channel-first order.
// It returns the permuted values and dimensions.
func NHWCToNCHW(values []float64, dims []uint32) ([]float64, []uint32, error) {
	if len(dims) != 4 {
		return nil, nil, fmt.Errorf("NHWC tensor must have rank 4, got %v", dims)
	}
	n, h, w, c := int(dims[0]), int(dims[1]), int(dims[2]), int(dims[3])
	if len(values) != n*h*w*c {
		return nil, nil, fmt.Errorf("%d values for shape %v", len(values), dims)
	}
	out := make([]float64, len(values))
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for ch := 0; ch < c; ch++ {
					src := ((b*h+y)*w+x)*c + ch
					dst := ((b*c+ch)*h+y)*w + x
					out[dst] = values[src]
				}
			}
		}
	}
	return out, []uint32{dims[0], dims[3], dims[1], dims[2]}, nil
}
