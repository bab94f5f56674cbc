package depthwiseconv2d

import (
	"math"
	"testing"

	"nnvts/internal/hal"
	"nnvts/internal/testgen"
)

type tensor struct {
	dims   []uint32
	values []float64
}

// operandValues resolves every operation input of m to its values, reading
// constants from the model and graph inputs from the example.
func operandValues(t *testing.T, m hal.Model, ex testgen.ExampleData) map[uint32]tensor {
	t.Helper()
	out := map[uint32]tensor{}
	for _, in := range ex.Inputs {
		v, err := testgen.DecodeValues(in.Type, in.Data)
		if err != nil {
			t.Fatalf("decode input %d: %v", in.Index, err)
		}
		out[in.Index] = tensor{dims: in.Dims, values: v}
	}
	for i, op := range m.Operands {
		if op.Lifetime != hal.LifeTimeConstantCopy {
			continue
		}
		data, err := m.ConstantData(uint32(i))
		if err != nil {
			t.Fatalf("ConstantData(%d) error = %v", i, err)
		}
		v, err := testgen.DecodeValues(op.Type, data)
		if err != nil {
			t.Fatalf("decode constant %d: %v", i, err)
		}
		out[uint32(i)] = tensor{dims: op.Dimensions, values: v}
	}
	return out
}

func nchwToNHWC(x tensor) tensor {
	n, c, h, w := int(x.dims[0]), int(x.dims[1]), int(x.dims[2]), int(x.dims[3])
	out := make([]float64, len(x.values))
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			for y := 0; y < h; y++ {
				for xx := 0; xx < w; xx++ {
					out[((b*h+y)*w+xx)*c+ch] = x.values[((b*c+ch)*h+y)*w+xx]
				}
			}
		}
	}
	return tensor{dims: []uint32{x.dims[0], x.dims[2], x.dims[3], x.dims[1]}, values: out}
}

func nhwcToNCHW(x tensor) tensor {
	n, h, w, c := int(x.dims[0]), int(x.dims[1]), int(x.dims[2]), int(x.dims[3])
	out := make([]float64, len(x.values))
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			for xx := 0; xx < w; xx++ {
				for ch := 0; ch < c; ch++ {
					out[((b*c+ch)*h+y)*w+xx] = x.values[((b*h+y)*w+xx)*c+ch]
				}
			}
		}
	}
	return tensor{dims: []uint32{x.dims[0], x.dims[3], x.dims[1], x.dims[2]}, values: out}
}

// dequantize maps quantized input, filter and bias values to reals. A bias
// without a scale of its own uses input scale times filter channel scale.
func dequantize(m hal.Model, ins []uint32, input, filter, bias tensor) (tensor, tensor, tensor) {
	inOp, fOp, bOp := m.Operands[ins[0]], m.Operands[ins[1]], m.Operands[ins[2]]
	outC := int(filter.dims[3])

	filterScales := make([]float64, outC)
	for c := range filterScales {
		filterScales[c] = float64(fOp.Scale)
		if cq := fOp.ExtraParams.ChannelQuant; cq != nil {
			filterScales[c] = float64(cq.Scales[c])
		}
	}

	realInput := tensor{dims: input.dims, values: make([]float64, len(input.values))}
	for i, q := range input.values {
		realInput.values[i] = float64(inOp.Scale) * (q - float64(inOp.ZeroPoint))
	}
	realFilter := tensor{dims: filter.dims, values: make([]float64, len(filter.values))}
	for i, q := range filter.values {
		realFilter.values[i] = filterScales[i%outC] * (q - float64(fOp.ZeroPoint))
	}
	realBias := tensor{dims: bias.dims, values: make([]float64, len(bias.values))}
	for c, q := range bias.values {
		scale := float64(bOp.Scale)
		if scale == 0 {
			scale = float64(inOp.Scale) * filterScales[c]
		}
		realBias.values[c] = scale * q
	}
	return realInput, realFilter, realBias
}

// samePadding returns the output extent and leading pad for SAME padding.
func samePadding(in, filter, stride, dilation int) (int, int) {
	eff := (filter-1)*dilation + 1
	out := (in + stride - 1) / stride
	total := (out-1)*stride + eff - in
	if total < 0 {
		total = 0
	}
	return out, total / 2
}

// referenceDepthwise evaluates the single DEPTHWISE_CONV_2D operation of m
// on ex and returns the real-valued output in the model's layout. Quantized
// operands are dequantized first.
func referenceDepthwise(t *testing.T, m hal.Model, ex testgen.ExampleData) []float64 {
	t.Helper()
	if len(m.Operations) != 1 || m.Operations[0].Type != hal.OperationDepthwiseConv2D {
		t.Fatalf("model operations = %+v, want one DEPTHWISE_CONV_2D", m.Operations)
	}
	vals := operandValues(t, m, ex)
	ins := m.Operations[0].Inputs
	scalar := func(pos int) int {
		return int(vals[ins[pos]].values[0])
	}

	implicit := len(ins) == 8 || len(ins) == 9 ||
		(len(ins) == 11 && m.Operands[ins[8]].Type == hal.TypeBool)

	var padL, padR, padT, padB, strideW, strideH, multiplier, act, next int
	scheme := int32(0)
	if implicit {
		scheme = int32(scalar(3))
		strideW, strideH, multiplier, act = scalar(4), scalar(5), scalar(6), scalar(7)
		next = 8
	} else {
		padL, padR, padT, padB = scalar(3), scalar(4), scalar(5), scalar(6)
		strideW, strideH, multiplier, act = scalar(7), scalar(8), scalar(9), scalar(10)
		next = 11
	}
	nchw := false
	if len(ins) > next {
		nchw = scalar(next) != 0
		next++
	}
	dilW, dilH := 1, 1
	if len(ins) > next+1 {
		dilW, dilH = scalar(next), scalar(next+1)
	}

	input, filter, bias := vals[ins[0]], vals[ins[1]], vals[ins[2]]
	if m.Operands[ins[0]].Type == hal.TypeTensorQuant8Asymm {
		input, filter, bias = dequantize(m, ins, input, filter, bias)
	}
	if nchw {
		input = nchwToNHWC(input)
	}

	batches, inH, inW, inC := int(input.dims[0]), int(input.dims[1]), int(input.dims[2]), int(input.dims[3])
	fH, fW, outC := int(filter.dims[1]), int(filter.dims[2]), int(filter.dims[3])
	if inC*multiplier != outC {
		t.Fatalf("input channels %d * multiplier %d != filter channels %d", inC, multiplier, outC)
	}

	var outH, outW int
	switch scheme {
	case hal.PaddingSame:
		outH, padT = samePadding(inH, fH, strideH, dilH)
		outW, padL = samePadding(inW, fW, strideW, dilW)
	case hal.PaddingValid:
		outH = (inH - (fH-1)*dilH - 1 + strideH) / strideH
		outW = (inW - (fW-1)*dilW - 1 + strideW) / strideW
	default:
		outH = (inH+padT+padB-(fH-1)*dilH-1)/strideH + 1
		outW = (inW+padL+padR-(fW-1)*dilW-1)/strideW + 1
	}

	out := make([]float64, batches*outH*outW*outC)
	for b := 0; b < batches; b++ {
		for y := 0; y < outH; y++ {
			for x := 0; x < outW; x++ {
				for oc := 0; oc < outC; oc++ {
					sum := bias.values[oc]
					ic := oc / multiplier
					for ky := 0; ky < fH; ky++ {
						iy := y*strideH - padT + ky*dilH
						if iy < 0 || iy >= inH {
							continue
						}
						for kx := 0; kx < fW; kx++ {
							ix := x*strideW - padL + kx*dilW
							if ix < 0 || ix >= inW {
								continue
							}
							sum += input.values[((b*inH+iy)*inW+ix)*inC+ic] * filter.values[(ky*fW+kx)*outC+oc]
						}
					}
					switch int32(act) {
					case hal.FusedRelu:
						sum = math.Max(sum, 0)
					case hal.FusedRelu1:
						sum = math.Max(math.Min(sum, 1), -1)
					case hal.FusedRelu6:
						sum = math.Max(math.Min(sum, 6), 0)
					}
					out[((b*outH+y)*outW+x)*outC+oc] = sum
				}
			}
		}
	}

	result := tensor{dims: []uint32{uint32(batches), uint32(outH), uint32(outW), uint32(outC)}, values: out}
	if nchw {
		result = nhwcToNCHW(result)
	}
	return result.values
}
