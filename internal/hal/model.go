package hal

import (
	"errors"
	"fmt"
	"math"
)

var ErrUnspecifiedDimension = errors.New("operand has unspecified dimension")

type DataLocation struct {
	PoolIndex uint32 `json:"poolIndex" yaml:"poolIndex"`
	Offset    uint32 `json:"offset" yaml:"offset"`
	Length    uint32 `json:"length" yaml:"length"`
}

// SymmPerChannelQuantParams gives each slice along ChannelDim its own scale.
// The zero point is always 0.
type SymmPerChannelQuantParams struct {
	Scales     []float32 `json:"scales" yaml:"scales,flow"`
	ChannelDim uint32    `json:"channelDim" yaml:"channelDim"`
}

type ExtraParams struct {
	ChannelQuant *SymmPerChannelQuantParams `json:"channelQuant,omitempty" yaml:"channelQuant,omitempty"`
}

type Operand struct {
	Type              OperandType     `json:"type" yaml:"type"`
	Dimensions        []uint32        `json:"dimensions" yaml:"dimensions,flow"`
	NumberOfConsumers uint32          `json:"numberOfConsumers" yaml:"numberOfConsumers"`
	Scale             float32         `json:"scale" yaml:"scale"`
	ZeroPoint         int32           `json:"zeroPoint" yaml:"zeroPoint"`
	Lifetime          OperandLifeTime `json:"lifetime" yaml:"lifetime"`
	Location          DataLocation    `json:"location" yaml:"location,flow"`
	ExtraParams       ExtraParams     `json:"extraParams" yaml:"extraParams,omitempty"`
}

type Operation struct {
	Type    OperationType `json:"type" yaml:"type"`
	Inputs  []uint32      `json:"inputs" yaml:"inputs,flow"`
	Outputs []uint32      `json:"outputs" yaml:"outputs,flow"`
}

// Memory describes a shared memory pool. No fixture uses pools; the field
// exists so that Model mirrors the full schema.
type Memory struct {
	Name string `json:"name" yaml:"name"`
	Size uint64 `json:"size" yaml:"size"`
}

type Model struct {
	Operands                         []Operand   `json:"operands" yaml:"operands"`
	Operations                       []Operation `json:"operations" yaml:"operations"`
	InputIndexes                     []uint32    `json:"inputIndexes" yaml:"inputIndexes,flow"`
	OutputIndexes                    []uint32    `json:"outputIndexes" yaml:"outputIndexes,flow"`
	OperandValues                    []byte      `json:"operandValues" yaml:"operandValues,flow"`
	Pools                            []Memory    `json:"pools" yaml:"pools"`
	RelaxComputationFloat32toFloat16 bool        `json:"relaxComputationFloat32toFloat16" yaml:"relaxComputationFloat32toFloat16"`
}

// ElementCount returns the product of the dimensions. Scalars have one
// element.
func (o Operand) ElementCount() (uint64, error) {
	n := uint64(1)
	for _, d := range o.Dimensions {
		if d == 0 {
			return 0, ErrUnspecifiedDimension
		}
		if n > math.MaxUint64/uint64(d) {
			return 0, fmt.Errorf("%s element count overflow", o.Type)
		}
		n *= uint64(d)
	}
	return n, nil
}

func (o Operand) ByteSize() (uint64, error) {
	size := ElementSize(o.Type)
	if size == 0 {
		return 0, fmt.Errorf("unsupported operand type %s", o.Type)
	}
	n, err := o.ElementCount()
	if err != nil {
		return 0, err
	}
	return n * uint64(size), nil
}

// HasUnspecifiedDimensions reports whether any dimension is zero.
func (o Operand) HasUnspecifiedDimensions() bool {
	for _, d := range o.Dimensions {
		if d == 0 {
			return true
		}
	}
	return false
}

// ConstantData returns the bytes of a CONSTANT_COPY operand.
func (m Model) ConstantData(index uint32) ([]byte, error) {
	if int(index) >= len(m.Operands) {
		return nil, fmt.Errorf("operand %d: %w", index, ErrIndexOutOfRange)
	}
	op := m.Operands[index]
	if op.Lifetime != LifeTimeConstantCopy {
		return nil, fmt.Errorf("operand %d has lifetime %s", index, op.Lifetime)
	}
	end := uint64(op.Location.Offset) + uint64(op.Location.Length)
	if end > uint64(len(m.OperandValues)) {
		return nil, fmt.Errorf("operand %d: %w", index, ErrLocation)
	}
	return m.OperandValues[op.Location.Offset:end], nil
}

func (p *SymmPerChannelQuantParams) clone() *SymmPerChannelQuantParams {
	if p == nil {
		return nil
	}
	return &SymmPerChannelQuantParams{
		Scales:     append([]float32(nil), p.Scales...),
		ChannelDim: p.ChannelDim,
	}
}

func (o Operand) Clone() Operand {
	out := o
	out.Dimensions = append([]uint32{}, o.Dimensions...)
	out.ExtraParams.ChannelQuant = o.ExtraParams.ChannelQuant.clone()
	return out
}

// Clone returns a deep copy sharing no memory with m.
func (m Model) Clone() Model {
	out := Model{
		Operands:                         make([]Operand, len(m.Operands)),
		Operations:                       make([]Operation, len(m.Operations)),
		InputIndexes:                     append([]uint32{}, m.InputIndexes...),
		OutputIndexes:                    append([]uint32{}, m.OutputIndexes...),
		OperandValues:                    append([]byte{}, m.OperandValues...),
		Pools:                            append([]Memory{}, m.Pools...),
		RelaxComputationFloat32toFloat16: m.RelaxComputationFloat32toFloat16,
	}
	for i, op := range m.Operands {
		out.Operands[i] = op.Clone()
	}
	for i, op := range m.Operations {
		out.Operations[i] = Operation{
			Type:    op.Type,
			Inputs:  append([]uint32{}, op.Inputs...),
			Outputs: append([]uint32{}, op.Outputs...),
		}
	}
	return out
}

func (t OperandType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *OperandType) UnmarshalText(b []byte) error {
	v, err := ParseOperandType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (l OperandLifeTime) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *OperandLifeTime) UnmarshalText(b []byte) error {
	v, err := ParseOperandLifeTime(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (o OperationType) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *OperationType) UnmarshalText(b []byte) error {
	v, err := ParseOperationType(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
