package depthwiseconv2d

import (
	"nnvts/internal/hal"
	"nnvts/internal/testgen"
)

// PerChannel is the depthwise_conv2d_per_channel group. Filters are
// declared with symmetric per-channel quantization; the bias scale of each
// channel is input scale times filter channel scale.
var PerChannel = testgen.MustExpand(testgen.Group{
	Name: "depthwise_conv2d_per_channel",
	Cases: []testgen.Case{
		perChannelSame(),
		perChannelDifferent(false),
		perChannelDifferent(true),
	},
})

func perChannelSame() testgen.Case {
	i1 := testgen.Input("op1", hal.TypeTensorQuant8Asymm, 1, 2, 2, 2).Quant(0.5, 0)
	f1 := testgen.Parameter("op2", hal.TypeTensorQuant8SymmPerChannel, []uint32{1, 2, 2, 2},
		2, 4, 2, 0, 2, 2, 2, 0).PerChannel(3, 0.5, 0.5)
	b1 := testgen.Parameter("op3", hal.TypeTensorInt32, []uint32{2}, 0, 0)
	o1 := testgen.Output("op4", hal.TypeTensorQuant8Asymm, 1, 1, 1, 2).Quant(1.0, 0)
	params := testgen.Int32Scalars("param", 0, 0, 0, 0, 1, 1, 1, hal.FusedNone)

	return testgen.Case{
		Model: depthwise("same", i1, f1, b1, params).To(o1),
		Example: testgen.Example{
			i1: {4, 16, 4, 32, 4, 64, 4, 128},
			o1: {8, 48},
		},
		WeightAsInput: []*testgen.Operand{f1, b1},
	}
}

// perChannelDifferent uses a different scale on every other channel. With
// layout set the case carries the layout operand and expands to NHWC and
// NCHW.
func perChannelDifferent(layout bool) testgen.Case {
	i1 := testgen.Input("op1", hal.TypeTensorQuant8Asymm, 1, 3, 3, 2).Quant(0.5, 128)
	f1 := testgen.Parameter("op2", hal.TypeTensorQuant8SymmPerChannel, []uint32{1, 2, 2, 4},
		1, 1, 1, 1,
		1, 1, 1, 1,
		1, 1, 1, 1,
		1, 1, 1, 1).PerChannel(3, 1.0, 0.5, 1.0, 0.5)
	b1 := testgen.Parameter("op3", hal.TypeTensorInt32, []uint32{4}, 4, 4, 4, 4)
	o1 := testgen.Output("op4", hal.TypeTensorQuant8Asymm, 1, 2, 2, 4).Quant(1.0, 128)
	params := testgen.Int32Scalars("param", 0, 0, 0, 0, 1, 1, 2, hal.FusedNone)

	c := testgen.Case{
		Model: depthwise("different", i1, f1, b1, params).To(o1),
		Example: testgen.Example{
			i1: {
				129, 130, 129, 130, 129, 130,
				129, 130, 129, 130, 129, 130,
				129, 130, 129, 130, 129, 130,
			},
			o1: {
				132, 130, 134, 131,
				132, 130, 134, 131,
				132, 130, 134, 131,
				132, 130, 134, 131,
			},
		},
		WeightAsInput: []*testgen.Operand{f1, b1},
	}
	if layout {
		flag := testgen.BoolScalar("layout", false)
		c.Model = depthwise("layout", i1, f1, b1, params, flag).To(o1)
		c.Layout = flag
		c.Transpose = []*testgen.Operand{i1, o1}
	}
	return c
}
