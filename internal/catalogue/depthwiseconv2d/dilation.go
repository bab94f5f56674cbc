package depthwiseconv2d

import (
	"nnvts/internal/hal"
	"nnvts/internal/testgen"
)

// Dilation is the depthwise_conv2d_dilation group. Every model carries the
// layout flag followed by the width and height dilation factors. The padding
// variants share the unnamed builders and differ only in their example labels.
var Dilation = testgen.MustExpand(testgen.Group{
	Name: "depthwise_conv2d_dilation",
	Cases: []testgen.Case{
		dilationUnit(false),
		dilationThree(false),
		dilationUnit(true),
		dilationThree(true),
		dilationSamePaddingStride2(),
	},
})

// dilationUnit is the explicit padding v1_2 model with dilation 1. The
// valid_padding form switches to implicit VALID padding, which yields the
// same output for this shape.
func dilationUnit(validPadding bool) testgen.Case {
	i1 := testgen.Input("op1", hal.TypeTensorFloat32, 1, 3, 3, 2)
	f1 := testgen.Parameter("op2", hal.TypeTensorFloat32, []uint32{1, 2, 2, 4},
		.25, 0, .2, 0,
		.25, 0, 0, .3,
		.25, 0, 0, 0,
		.25, .1, 0, 0)
	b1 := testgen.Parameter("op3", hal.TypeTensorFloat32, []uint32{4}, 1, 2, 3, 4)
	o1 := testgen.Output("op4", hal.TypeTensorFloat32, 1, 2, 2, 4)
	layout := testgen.BoolScalar("layout", false)
	dilation := testgen.Int32Scalars("dilation", 1, 1)

	params := testgen.Int32Scalars("param", 0, 0, 0, 0, 1, 1, 2, hal.FusedNone)
	exampleName := ""
	if validPadding {
		params = testgen.Int32Scalars("param", hal.PaddingValid, 1, 1, 2, hal.FusedNone)
		exampleName = "valid_padding"
	}
	extra := append([]*testgen.Operand{layout}, dilation...)

	return testgen.Case{
		Model:       depthwise("", i1, f1, b1, params, extra...).To(o1),
		ExampleName: exampleName,
		Example: testgen.Example{
			i1: {
				10, 21, 10, 22, 10, 23,
				10, 24, 10, 25, 10, 26,
				10, 27, 10, 28, 10, 29,
			},
			o1: {
				11, 3, 7.2, 10.6,
				11, 3, 7.4, 10.9,
				11, 3, 7.8, 11.5,
				11, 3, 8.0, 11.8,
			},
		},
		Layout:        layout,
		Transpose:     []*testgen.Operand{i1, o1},
		WeightAsInput: []*testgen.Operand{f1, b1},
		Variations: []testgen.Variation{
			testgen.Relaxed(),
			testgen.Float16(),
			testgen.Quantize("quant8", quantSpecs{
				i1: asymm8(0.5, 0),
				f1: asymm8(0.01, 0),
				b1: int32Bias(0.005),
				o1: asymm8(0.1, 0),
			}),
		},
	}
}

// dilationThree applies a 3x3 filter with dilation 3 to a 9x9 input whose
// only non-zero values form the centre 3x3 block, so each output sees just
// the centre filter tap.
func dilationThree(validPadding bool) testgen.Case {
	i2 := testgen.Input("op1", hal.TypeTensorFloat32, 1, 9, 9, 1)
	f2 := testgen.Parameter("op2", hal.TypeTensorFloat32, []uint32{1, 3, 3, 1}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	b2 := testgen.Parameter("op3", hal.TypeTensorFloat32, []uint32{1}, 0)
	o2 := testgen.Output("op4", hal.TypeTensorFloat32, 1, 3, 3, 1)
	layout := testgen.BoolScalar("layout", false)
	dilation := testgen.Int32Scalars("dilation", 3, 3)

	params := testgen.Int32Scalars("param", 0, 0, 0, 0, 1, 1, 1, hal.FusedNone)
	exampleName := ""
	if validPadding {
		params = testgen.Int32Scalars("param", hal.PaddingValid, 1, 1, 1, hal.FusedNone)
		exampleName = "valid_padding"
	}
	extra := append([]*testgen.Operand{layout}, dilation...)

	input := make([]float64, 9*9)
	for y := 3; y < 6; y++ {
		for x := 3; x < 6; x++ {
			input[y*9+x] = 1
		}
	}

	return testgen.Case{
		Model:       depthwise("", i2, f2, b2, params, extra...).To(o2),
		ExampleName: exampleName,
		Example: testgen.Example{
			i2: input,
			o2: {5, 5, 5, 5, 5, 5, 5, 5, 5},
		},
		Layout:        layout,
		Transpose:     []*testgen.Operand{i2, o2},
		WeightAsInput: []*testgen.Operand{f2, b2},
	}
}

func dilationSamePaddingStride2() testgen.Case {
	i3 := testgen.Input("input", hal.TypeTensorFloat32, 1, 6, 6, 1)
	f3 := testgen.Parameter("filter", hal.TypeTensorFloat32, []uint32{1, 2, 2, 1}, 1, 2, 3, 4)
	b3 := testgen.Parameter("bias", hal.TypeTensorFloat32, []uint32{1}, 0)
	o3 := testgen.Output("output", hal.TypeTensorFloat32, 1, 3, 3, 1)
	layout := testgen.BoolScalar("layout", false)
	params := testgen.Int32Scalars("param", hal.PaddingSame, 2, 2, 1, hal.FusedNone)
	extra := append([]*testgen.Operand{layout}, testgen.Int32Scalars("dilation", 3, 3)...)

	return testgen.Case{
		Model:       depthwise("", i3, f3, b3, params, extra...).To(o3),
		ExampleName: "same_padding_stride_2",
		Example: testgen.Example{
			i3: {
				0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0,
				0, 0, 1, 1, 0, 0,
				0, 0, 1, 1, 0, 0,
				0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0,
			},
			o3: {
				4, 0, 3,
				0, 0, 0,
				2, 0, 1,
			},
		},
		Layout:        layout,
		Transpose:     []*testgen.Operand{i3, o3},
		WeightAsInput: []*testgen.Operand{f3, b3},
		Variations: []testgen.Variation{
			testgen.Relaxed(),
			testgen.Quantize("quant8", quantSpecs{
				i3: asymm8(0.5, 0),
				f3: asymm8(0.125, 0),
				b3: int32Bias(0.0625),
				o3: asymm8(0.125, 0),
			}),
			testgen.Float16(),
		},
	}
}
