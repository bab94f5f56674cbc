// Package testgen expands declarative single-operation test definitions into
// fully populated hal.Model fixtures, one per combination of layout, data
// type, weight placement and output shape.
package testgen

import (
	"strconv"

	"nnvts/internal/hal"
)

type Kind int

const (
	KindInput Kind = iota
	KindParameter
	KindOutput
)

// Operand is a declared graph slot. Values are expressed in the operand's
// declared type: real numbers for float operands, stored integers for
// operands declared as quantized.
type Operand struct {
	Name         string
	Kind         Kind
	Type         hal.OperandType
	Dims         []uint32
	Scale        float32
	ZeroPoint    int32
	ChannelQuant *hal.SymmPerChannelQuantParams
	Values       []float64
}

func Input(name string, t hal.OperandType, dims ...uint32) *Operand {
	return &Operand{Name: name, Kind: KindInput, Type: t, Dims: dims}
}

func Output(name string, t hal.OperandType, dims ...uint32) *Operand {
	return &Operand{Name: name, Kind: KindOutput, Type: t, Dims: dims}
}

func Parameter(name string, t hal.OperandType, dims []uint32, values ...float64) *Operand {
	return &Operand{Name: name, Kind: KindParameter, Type: t, Dims: dims, Values: values}
}

func Int32Scalar(name string, v int32) *Operand {
	return &Operand{Name: name, Kind: KindParameter, Type: hal.TypeInt32, Values: []float64{float64(v)}}
}

func BoolScalar(name string, v bool) *Operand {
	b := 0.0
	if v {
		b = 1
	}
	return &Operand{Name: name, Kind: KindParameter, Type: hal.TypeBool, Values: []float64{b}}
}

// Quant sets per-tensor quantization parameters.
func (o *Operand) Quant(scale float32, zeroPoint int32) *Operand {
	o.Scale = scale
	o.ZeroPoint = zeroPoint
	return o
}

// PerChannel attaches symmetric per-channel parameters along axis.
func (o *Operand) PerChannel(axis uint32, scales ...float32) *Operand {
	o.ChannelQuant = &hal.SymmPerChannelQuantParams{Scales: scales, ChannelDim: axis}
	return o
}

// Int32Scalars declares one INT32 constant per value, named prefix, prefix1,
// prefix2 and so on.
func Int32Scalars(prefix string, values ...int32) []*Operand {
	out := make([]*Operand, len(values))
	for i, v := range values {
		name := prefix
		if i > 0 {
			name = prefix + strconv.Itoa(i)
		}
		out[i] = Int32Scalar(name, v)
	}
	return out
}

type Model struct {
	Name      string
	Operation hal.OperationType
	Inputs    []*Operand
	Outputs   []*Operand
}

func NewModel(name string, op hal.OperationType, inputs ...*Operand) *Model {
	return &Model{Name: name, Operation: op, Inputs: inputs}
}

func (m *Model) To(outputs ...*Operand) *Model {
	m.Outputs = outputs
	return m
}

// Example maps graph inputs and outputs to their values.
type Example map[*Operand][]float64

// QuantSpec replaces an operand's type in a data type variation. When
// ChannelQuant is set with Hidden, the per-channel scales quantize the values
// but are not recorded on the operand.
type QuantSpec struct {
	Type         hal.OperandType
	Scale        float32
	ZeroPoint    int32
	ChannelQuant *hal.SymmPerChannelQuantParams
	Hidden       bool
}

type Variation struct {
	Name    string
	Relaxed bool
	Float16 bool
	Quant   map[*Operand]QuantSpec
}

func Relaxed() Variation { return Variation{Name: "relaxed", Relaxed: true} }

func Float16() Variation { return Variation{Name: "float16", Float16: true} }

func Quantize(name string, specs map[*Operand]QuantSpec) Variation {
	return Variation{Name: name, Quant: specs}
}

// Case is one model with one example and the variations to expand it over.
type Case struct {
	Model   *Model
	Example Example

	// ExampleName labels the examples of the case in place of the model
	// name. Builders are still named after the model.
	ExampleName string

	// Layout is the BOOL layout operand. When set the case is expanded to
	// nhwc and nchw, transposing the Transpose operands for nchw.
	Layout    *Operand
	Transpose []*Operand

	WeightAsInput []*Operand
	Variations    []Variation

	// Ignore lists output indexes excluded from verification.
	Ignore []int
}

type Group struct {
	Name  string
	Cases []Case
}
