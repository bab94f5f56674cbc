// Package depthwiseconv2d declares the DEPTHWISE_CONV_2D fixture groups.
package depthwiseconv2d

import (
	"nnvts/internal/hal"
	"nnvts/internal/testgen"
)

type quantSpecs = map[*testgen.Operand]testgen.QuantSpec

func asymm8(scale float32, zeroPoint int32) testgen.QuantSpec {
	return testgen.QuantSpec{Type: hal.TypeTensorQuant8Asymm, Scale: scale, ZeroPoint: zeroPoint}
}

func int32Bias(scale float32) testgen.QuantSpec {
	return testgen.QuantSpec{Type: hal.TypeTensorInt32, Scale: scale}
}

// perChannelFilter quantizes a filter with one scale per output channel
// (axis 3 of the [1, H, W, C] filter).
func perChannelFilter(scales ...float32) testgen.QuantSpec {
	return testgen.QuantSpec{
		Type:         hal.TypeTensorQuant8SymmPerChannel,
		ChannelQuant: &hal.SymmPerChannelQuantParams{Scales: scales, ChannelDim: 3},
	}
}

// hiddenBias quantizes a bias with per-channel scales that are not recorded
// on the operand; the driver derives them from input and filter scales.
func hiddenBias(scales ...float32) testgen.QuantSpec {
	return testgen.QuantSpec{
		Type:         hal.TypeTensorInt32,
		ChannelQuant: &hal.SymmPerChannelQuantParams{Scales: scales, ChannelDim: 0},
		Hidden:       true,
	}
}

func depthwise(name string, input, filter, bias *testgen.Operand, params []*testgen.Operand, extra ...*testgen.Operand) *testgen.Model {
	inputs := append([]*testgen.Operand{input, filter, bias}, params...)
	inputs = append(inputs, extra...)
	return testgen.NewModel(name, hal.OperationDepthwiseConv2D, inputs...)
}

// V12 is the depthwise_conv2d_v1_2 group: explicit and implicit padding,
// depth multipliers 1 and 2, and an output multiplier greater than one.
var V12 = testgen.MustExpand(testgen.Group{
	Name: "depthwise_conv2d_v1_2",
	Cases: []testgen.Case{
		v12ExplicitPadding(),
		v12ValidPadding(),
		v12Large(),
		v12LargeMultiChannel(),
		v12QuantOutputMultiplierGT1(),
	},
})

func v12ExplicitPadding() testgen.Case {
	i1 := testgen.Input("op1", hal.TypeTensorFloat32, 1, 3, 3, 2)
	f1 := testgen.Parameter("op2", hal.TypeTensorFloat32, []uint32{1, 2, 2, 4},
		.25, 0, .2, 0,
		.25, 0, 0, .3,
		.25, 0, 0, 0,
		.25, .1, 0, 0)
	b1 := testgen.Parameter("op3", hal.TypeTensorFloat32, []uint32{4}, 1, 2, 3, 4)
	o1 := testgen.Output("op4", hal.TypeTensorFloat32, 1, 2, 2, 4)
	layout := testgen.BoolScalar("layout", false)
	params := testgen.Int32Scalars("param", 0, 0, 0, 0, 1, 1, 2, hal.FusedNone)

	channelQuant := func(outputScale float32) testgen.Variation {
		return testgen.Quantize("channelQuant8", quantSpecs{
			i1: asymm8(0.5, 0),
			f1: perChannelFilter(0.01, 0.005, 0.01, 0.005),
			b1: hiddenBias(0.005, 0.0025, 0.005, 0.0025),
			o1: asymm8(outputScale, 0),
		})
	}

	return testgen.Case{
		Model: depthwise("", i1, f1, b1, params, layout).To(o1),
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
			channelQuant(0.1),
			channelQuant(0.0001),
			testgen.Quantize("quant8", quantSpecs{
				i1: asymm8(0.5, 0),
				f1: asymm8(0.01, 0),
				b1: int32Bias(0.005),
				o1: asymm8(0.1, 0),
			}),
		},
	}
}

func v12ValidPadding() testgen.Case {
	i2 := testgen.Input("op1", hal.TypeTensorFloat32, 1, 3, 2, 2)
	f2 := testgen.Parameter("op2", hal.TypeTensorFloat32, []uint32{1, 2, 2, 4},
		1, 2, 3, 4,
		-9, 10, -11, 12,
		5, 6, 7, 8,
		13, -14, 15, -16)
	b2 := testgen.Parameter("op3", hal.TypeTensorFloat32, []uint32{4}, 1, 2, 3, 4)
	o2 := testgen.Output("op4", hal.TypeTensorFloat32, 1, 2, 1, 4)
	layout := testgen.BoolScalar("layout", false)
	params := testgen.Int32Scalars("param", hal.PaddingValid, 1, 1, 2, hal.FusedNone)

	return testgen.Case{
		Model: depthwise("", i2, f2, b2, params, layout).To(o2),
		Example: testgen.Example{
			i2: {1, 2, 7, 8, 3, 4, 9, 10, 5, 6, 11, 12},
			o2: {71, -34, 99, -20, 91, -26, 127, -4},
		},
		Layout:        layout,
		Transpose:     []*testgen.Operand{i2, o2},
		WeightAsInput: []*testgen.Operand{f2, b2},
		Variations: []testgen.Variation{
			testgen.Relaxed(),
			testgen.Float16(),
			testgen.Quantize("quant8", quantSpecs{
				i2: asymm8(0.5, 127),
				f2: asymm8(0.5, 127),
				b2: int32Bias(0.25),
				o2: asymm8(1.0, 127),
			}),
			testgen.Quantize("channelQuant8", quantSpecs{
				i2: asymm8(0.5, 127),
				f2: perChannelFilter(0.5, 0.25, 0.5, 0.25),
				b2: hiddenBias(0.25, 0.125, 0.25, 0.125),
				o2: asymm8(1.0, 127),
			}),
		},
	}
}

func v12Large() testgen.Case {
	i3 := testgen.Input("op1", hal.TypeTensorFloat32, 1, 2, 2, 2)
	f3 := testgen.Parameter("op2", hal.TypeTensorFloat32, []uint32{1, 2, 2, 2},
		.25, 0, .25, 1, .25, 0, .25, 1)
	b3 := testgen.Parameter("op3", hal.TypeTensorFloat32, []uint32{2}, 100, 200)
	o3 := testgen.Output("op4", hal.TypeTensorFloat32, 1, 1, 1, 2)
	layout := testgen.BoolScalar("layout", false)
	params := testgen.Int32Scalars("param", 0, 0, 0, 0, 1, 1, 1, hal.FusedNone)

	return testgen.Case{
		Model: depthwise("large", i3, f3, b3, params, layout).To(o3),
		Example: testgen.Example{
			i3: {10, 21, 10, 22, 10, 23, 10, 24},
			o3: {110, 246},
		},
		Layout:        layout,
		Transpose:     []*testgen.Operand{i3, o3},
		WeightAsInput: []*testgen.Operand{f3, b3},
		Variations: []testgen.Variation{
			testgen.Relaxed(),
			testgen.Float16(),
			testgen.Quantize("quant8", quantSpecs{
				i3: asymm8(0.5, 100),
				f3: asymm8(0.125, 128),
				b3: int32Bias(0.0625),
				o3: asymm8(2.0, 128),
			}),
			testgen.Quantize("channelQuant8", quantSpecs{
				i3: asymm8(0.5, 100),
				f3: perChannelFilter(0.125, 0.25),
				b3: hiddenBias(0.0625, 0.125),
				o3: asymm8(2.0, 128),
			}),
		},
	}
}

func v12LargeMultiChannel() testgen.Case {
	i4 := testgen.Input("op1", hal.TypeTensorFloat32, 1, 2, 2, 4)
	f4 := testgen.Parameter("op2", hal.TypeTensorFloat32, []uint32{1, 2, 2, 4},
		.25, 0, 10, 50,
		.25, 1, 20, 50,
		.25, 0, 30, 50,
		.25, 1, 40, 50)
	b4 := testgen.Parameter("op3", hal.TypeTensorFloat32, []uint32{4}, 6000, 7000, 8000, 9000)
	o4 := testgen.Output("op4", hal.TypeTensorFloat32, 1, 1, 1, 4)
	layout := testgen.BoolScalar("layout", false)
	params := testgen.Int32Scalars("param", 0, 0, 0, 0, 1, 1, 1, hal.FusedNone)

	return testgen.Case{
		Model: depthwise("large", i4, f4, b4, params, layout).To(o4),
		Example: testgen.Example{
			i4: {
				10, 21, 10, 0,
				10, 22, 20, 0,
				10, 23, 30, 0,
				10, 24, 40, 0,
			},
			o4: {6010, 7046, 11000, 9000},
		},
		Layout:        layout,
		Transpose:     []*testgen.Operand{i4, o4},
		WeightAsInput: []*testgen.Operand{f4, b4},
		Variations: []testgen.Variation{
			testgen.Relaxed(),
			testgen.Float16(),
			testgen.Quantize("quant8", quantSpecs{
				i4: asymm8(0.5, 0),
				f4: asymm8(0.25, 0),
				b4: int32Bias(0.125),
				o4: asymm8(50.0, 0),
			}),
			testgen.Quantize("channelQuant8", quantSpecs{
				i4: asymm8(0.5, 0),
				f4: perChannelFilter(0.25, 0.5, 0.5, 0.5),
				b4: hiddenBias(0.125, 0.25, 0.25, 0.25),
				o4: asymm8(50.0, 0),
			}),
		},
	}
}

// v12QuantOutputMultiplierGT1 uses input and filter scales whose product
// exceeds the output scale, so the requantization multiplier is above one.
func v12QuantOutputMultiplierGT1() testgen.Case {
	const s = float32(256.5 / 255)
	i5 := testgen.Input("op1", hal.TypeTensorQuant8Asymm, 1, 3, 2, 2).Quant(s, 127)
	f5 := testgen.Parameter("op2", hal.TypeTensorQuant8Asymm, []uint32{1, 2, 2, 4},
		129, 130, 131, 132,
		119, 138, 117, 140,
		133, 134, 135, 136,
		141, 114, 143, 112).Quant(s, 128)
	b5 := testgen.Parameter("op3", hal.TypeTensorInt32, []uint32{4}, 2, 4, 6, 8).Quant(s*s, 0)
	o5 := testgen.Output("op4", hal.TypeTensorQuant8Asymm, 1, 2, 1, 4).Quant(1.0, 127)
	params := testgen.Int32Scalars("param", hal.PaddingValid, 1, 1, 2, hal.FusedNone)

	return testgen.Case{
		Model: depthwise("quant_output_multiplier_gt_1", i5, f5, b5, params).To(o5),
		Example: testgen.Example{
			i5: {129, 131, 141, 143, 133, 135, 145, 147, 137, 139, 149, 151},
			o5: {255, 58, 255, 87, 255, 74, 255, 119},
		},
		WeightAsInput: []*testgen.Operand{f5, b5},
		Variations:    []testgen.Variation{testgen.Relaxed()},
	}
}
