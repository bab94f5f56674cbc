package testgen

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nnvts/internal/hal"
)

type fixture struct {
	input, filter, bias, output, layout *Operand
	c                                   Case
}

// newFixture declares a 1x1 depthwise convolution with multiplier 2 over a
// 2x2 single channel input.
func newFixture(name string, variations ...Variation) fixture {
	var f fixture
	f.input = Input("in", hal.TypeTensorFloat32, 1, 2, 2, 1)
	f.filter = Parameter("filter", hal.TypeTensorFloat32, []uint32{1, 1, 1, 2}, 1, 2)
	f.bias = Parameter("bias", hal.TypeTensorFloat32, []uint32{2}, 0.5, 0)
	f.output = Output("out", hal.TypeTensorFloat32, 1, 2, 2, 2)
	f.layout = BoolScalar("layout", false)

	inputs := append([]*Operand{f.input, f.filter, f.bias}, Int32Scalars("p", 0, 0, 0, 0, 1, 1, 2, 0)...)
	inputs = append(inputs, f.layout)
	f.c = Case{
		Model: NewModel(name, hal.OperationDepthwiseConv2D, inputs...).To(f.output),
		Example: Example{
			f.input:  {1, 2, 3, 4},
			f.output: {1.5, 2, 2.5, 4, 3.5, 6, 4.5, 8},
		},
		Layout:        f.layout,
		Transpose:     []*Operand{f.input, f.output},
		WeightAsInput: []*Operand{f.filter, f.bias},
		Variations:    variations,
	}
	return f
}

func byName(models []TestModel) map[string]TestModel {
	out := make(map[string]TestModel, len(models))
	for _, tm := range models {
		out[tm.Name] = tm
	}
	return out
}

func TestVariantName(t *testing.T) {
	tests := []struct {
		model string
		v     Variant
		want  string
	}{
		{"", Variant{Layout: LayoutNHWC}, "nhwc"},
		{"large", Variant{Layout: LayoutNCHW, WeightAsInput: true, DataType: "quant8"}, "large_nchw_weight_as_input_quant8"},
		{"same", Variant{DynamicOutputShape: true}, "same_dynamic_output_shape"},
		{"", Variant{DynamicOutputShape: true, Layout: LayoutNHWC, DataType: "relaxed"}, "dynamic_output_shape_nhwc_relaxed"},
	}
	for _, tt := range tests {
		if got := VariantName(tt.model, tt.v); got != tt.want {
			t.Fatalf("VariantName(%q, %+v) = %q, want %q", tt.model, tt.v, got, tt.want)
		}
	}
}

func TestExpandOrderAndNames(t *testing.T) {
	a := newFixture("", Relaxed())
	b := newFixture("", Relaxed())
	models, err := Expand(Group{Name: "g", Cases: []Case{a.c, b.c}})
	require.NoError(t, err)

	var names []string
	for _, tm := range models {
		names = append(names, tm.Name)
		assert.Equal(t, "g", tm.Group)
	}
	want := []string{
		"nhwc", "nhwc_relaxed", "nhwc_weight_as_input", "nhwc_weight_as_input_relaxed",
		"nchw", "nchw_relaxed", "nchw_weight_as_input", "nchw_weight_as_input_relaxed",
		"dynamic_output_shape_nhwc", "dynamic_output_shape_nhwc_relaxed",
		"dynamic_output_shape_nhwc_weight_as_input", "dynamic_output_shape_nhwc_weight_as_input_relaxed",
		"dynamic_output_shape_nchw", "dynamic_output_shape_nchw_relaxed",
		"dynamic_output_shape_nchw_weight_as_input", "dynamic_output_shape_nchw_weight_as_input_relaxed",
	}
	for _, n := range want {
		want = append(want, n+"_2")
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandExampleName(t *testing.T) {
	a := newFixture("")
	b := newFixture("")
	b.c.ExampleName = "valid_padding"
	c := newFixture("")
	c.c.ExampleName = "valid_padding"
	models, err := Expand(Group{Name: "g", Cases: []Case{a.c, b.c, c.c}})
	require.NoError(t, err)
	require.Len(t, models, 24)

	byBuilder := byName(models)
	tests := []struct{ builder, example string }{
		{"nhwc", "nhwc"},
		{"nhwc_2", "valid_padding_nhwc"},
		{"nhwc_3", "valid_padding_nhwc_2"},
		{"dynamic_output_shape_nchw_weight_as_input_2", "valid_padding_dynamic_output_shape_nchw_weight_as_input"},
	}
	for _, tt := range tests {
		tm, ok := byBuilder[tt.builder]
		require.True(t, ok, tt.builder)
		assert.Equal(t, tt.example, tm.ExampleName, tt.builder)
	}
}

func TestExpandOperandOrderAndConstants(t *testing.T) {
	f := newFixture("")
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	m := byName(models)["nhwc"].Create()

	require.Len(t, m.Operands, 13)
	assert.Equal(t, hal.LifeTimeModelInput, m.Operands[0].Lifetime)
	assert.Equal(t, hal.LifeTimeModelOutput, m.Operands[12].Lifetime)
	assert.Equal(t, []uint32{}, m.Operands[3].Dimensions)

	// filter 8 + bias 8 + eight INT32 scalars + layout
	require.Len(t, m.OperandValues, 8+8+32+1)
	filter, err := m.ConstantData(1)
	require.NoError(t, err)
	got, err := DecodeValues(hal.TypeTensorFloat32, filter)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	assert.Equal(t, hal.DataLocation{Offset: 8, Length: 8}, m.Operands[2].Location)
	assert.Equal(t, hal.DataLocation{Offset: 16, Length: 4}, m.Operands[3].Location)
	require.NoError(t, hal.Validate(m))
}

func TestExpandNCHW(t *testing.T) {
	f := newFixture("")
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	tm := byName(models)["nchw"]
	m := tm.Create()

	layout, err := m.ConstantData(11)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, layout)
	assert.Equal(t, []uint32{1, 1, 2, 2}, m.Operands[0].Dimensions)
	assert.Equal(t, []uint32{1, 2, 2, 2}, m.Operands[12].Dimensions)

	out, err := DecodeValues(hal.TypeTensorFloat32, tm.Examples[0].Outputs[0].Data)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 3.5, 4.5, 2, 4, 6, 8}, out)

	// the filter keeps its layout
	assert.Equal(t, []uint32{1, 1, 1, 2}, m.Operands[1].Dimensions)
}

func TestExpandWeightAsInput(t *testing.T) {
	f := newFixture("")
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	tm := byName(models)["nhwc_weight_as_input"]
	m := tm.Create()

	assert.Equal(t, []uint32{0, 1, 2}, m.InputIndexes)
	assert.Equal(t, hal.LifeTimeModelInput, m.Operands[1].Lifetime)
	assert.Equal(t, hal.LifeTimeModelInput, m.Operands[2].Lifetime)
	require.Len(t, m.OperandValues, 32+1)
	assert.Equal(t, hal.DataLocation{Offset: 0, Length: 4}, m.Operands[3].Location)

	ex := tm.Examples[0]
	require.Len(t, ex.Inputs, 3)
	assert.Equal(t, uint32(1), ex.Inputs[1].Index)
	assert.Equal(t, []uint32{1, 1, 1, 2}, ex.Inputs[1].Dims)
}

func TestExpandDynamicOutputShape(t *testing.T) {
	f := newFixture("")
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	tm := byName(models)["dynamic_output_shape_nchw"]
	m := tm.Create()

	assert.Equal(t, []uint32{0, 0, 0, 0}, m.Operands[12].Dimensions)
	assert.Equal(t, []uint32{1, 2, 2, 2}, tm.Examples[0].Outputs[0].Dims)
	assert.True(t, tm.Variant.DynamicOutputShape)
	assert.Equal(t, LayoutNCHW, tm.Variant.Layout)
}

func TestExpandRelaxedAndFloat16(t *testing.T) {
	f := newFixture("", Relaxed(), Float16())
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	byN := byName(models)

	relaxed := byN["nhwc_relaxed"].Create()
	assert.True(t, relaxed.RelaxComputationFloat32toFloat16)
	assert.Equal(t, hal.TypeTensorFloat32, relaxed.Operands[0].Type)

	half := byN["nhwc_float16"]
	m := half.Create()
	assert.False(t, m.RelaxComputationFloat32toFloat16)
	for _, i := range []int{0, 1, 2, 12} {
		assert.Equal(t, hal.TypeTensorFloat16, m.Operands[i].Type, "operand[%d]", i)
	}
	assert.Equal(t, hal.TypeInt32, m.Operands[3].Type)
	require.Len(t, m.OperandValues, 4+4+32+1)

	out, err := DecodeValues(hal.TypeTensorFloat16, half.Examples[0].Outputs[0].Data)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2, 2.5, 4, 3.5, 6, 4.5, 8}, out)
}

func TestExpandQuantize(t *testing.T) {
	f := newFixture("")
	f.c.Variations = []Variation{
		Quantize("quant8", map[*Operand]QuantSpec{
			f.input:  {Type: hal.TypeTensorQuant8Asymm, Scale: 0.5, ZeroPoint: 10},
			f.filter: {Type: hal.TypeTensorQuant8Asymm, Scale: 0.25},
			f.bias:   {Type: hal.TypeTensorInt32, Scale: 0.125},
			f.output: {Type: hal.TypeTensorQuant8Asymm, Scale: 0.5},
		}),
		Quantize("channelQuant8", map[*Operand]QuantSpec{
			f.input: {Type: hal.TypeTensorQuant8Asymm, Scale: 0.5},
			f.filter: {
				Type:         hal.TypeTensorQuant8SymmPerChannel,
				ChannelQuant: &hal.SymmPerChannelQuantParams{Scales: []float32{0.5, 0.25}, ChannelDim: 3},
			},
			f.bias: {
				Type:         hal.TypeTensorInt32,
				ChannelQuant: &hal.SymmPerChannelQuantParams{Scales: []float32{0.25, 0.125}},
				Hidden:       true,
			},
			f.output: {Type: hal.TypeTensorQuant8Asymm, Scale: 0.5},
		}),
	}
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	byN := byName(models)

	tm := byN["nhwc_quant8"]
	m := tm.Create()
	assert.Equal(t, float32(0.5), m.Operands[0].Scale)
	assert.Equal(t, int32(10), m.Operands[0].ZeroPoint)
	filter, err := m.ConstantData(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 8}, filter)
	bias, err := m.ConstantData(2)
	require.NoError(t, err)
	got, err := DecodeValues(hal.TypeTensorInt32, bias)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0}, got)
	assert.Equal(t, []byte{12, 14, 16, 18}, tm.Examples[0].Inputs[0].Data)
	assert.Equal(t, []byte{3, 4, 5, 8, 7, 12, 9, 16}, tm.Examples[0].Outputs[0].Data)

	cq := byN["nchw_channelQuant8"].Create()
	assert.Equal(t, hal.TypeTensorQuant8SymmPerChannel, cq.Operands[1].Type)
	assert.Equal(t, uint32(3), cq.Operands[1].ExtraParams.ChannelQuant.ChannelDim)
	assert.Nil(t, cq.Operands[2].ExtraParams.ChannelQuant)
	filter, err = cq.ConstantData(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 8}, filter)
	bias, err = cq.ConstantData(2)
	require.NoError(t, err)
	got, err = DecodeValues(hal.TypeTensorInt32, bias)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0}, got)
}

func TestExpandIgnore(t *testing.T) {
	f := newFixture("")
	f.c.Ignore = []int{0}
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	assert.True(t, models[0].IsIgnored(0))
	assert.False(t, models[0].IsIgnored(1))
	assert.Equal(t, []int{0}, models[0].Ignored)
}

func TestCreateIsIndependent(t *testing.T) {
	f := newFixture("")
	models, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.NoError(t, err)
	a := models[0].Create()
	a.OperandValues[0] = 0xaa
	a.Operands[0].Dimensions[1] = 7
	b := models[0].Create()
	assert.NotEqual(t, byte(0xaa), b.OperandValues[0])
	assert.Equal(t, uint32(2), b.Operands[0].Dimensions[1])
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
	}{
		{"missing example", func(f *fixture) { delete(f.c.Example, f.input) }},
		{"no model", func(f *fixture) { f.c.Model = nil }},
		{"layout not a parameter", func(f *fixture) { f.c.Layout = f.input }},
		{"weight is an input", func(f *fixture) { f.c.WeightAsInput = []*Operand{f.input} }},
		{"wrong value count", func(f *fixture) { f.c.Example[f.input] = []float64{1} }},
		{"undeclared quantized operand", func(f *fixture) {
			f.c.Variations = []Variation{Quantize("q", map[*Operand]QuantSpec{
				Input("stray", hal.TypeTensorFloat32, 1): {Type: hal.TypeTensorQuant8Asymm, Scale: 1},
			})}
		}},
		{"zero quantization scale", func(f *fixture) {
			f.c.Variations = []Variation{Quantize("q", map[*Operand]QuantSpec{
				f.bias: {Type: hal.TypeTensorQuant8Asymm, Scale: 0},
			})}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("")
			tt.mutate(&f)
			if _, err := Expand(Group{Name: "g", Cases: []Case{f.c}}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMustExpandPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustExpand(Group{Name: "g", Cases: []Case{{}}})
}

func TestExpandValidationError(t *testing.T) {
	f := newFixture("")
	f.c.Variations = []Variation{Quantize("q", map[*Operand]QuantSpec{
		f.output: {Type: hal.TypeTensorQuant8Asymm, Scale: 1, ZeroPoint: 300},
	})}
	_, err := Expand(Group{Name: "g", Cases: []Case{f.c}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, hal.ErrQuantParams))
}
