package hal

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange  = errors.New("operand index out of range")
	ErrConsumerCount    = errors.New("consumer count mismatch")
	ErrLifetimeMismatch = errors.New("lifetime mismatch")
	ErrLocation         = errors.New("invalid operand location")
	ErrQuantParams      = errors.New("invalid quantization parameters")
	ErrOperandType      = errors.New("invalid operand type")
	ErrUnusedOperand    = errors.New("operand is neither produced nor consumed")
)

// Validate checks the structural invariants of m and returns every
// violation found, joined. A nil result means the model is self-consistent.
func Validate(m Model) error {
	var errs []error
	addf := func(sentinel error, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel))
	}

	n := uint32(len(m.Operands))
	consumers := make([]uint32, n)
	produced := make([]bool, n)
	for i, op := range m.Operations {
		for _, idx := range op.Inputs {
			if idx >= n {
				addf(ErrIndexOutOfRange, "operation[%d] %s input %d", i, op.Type, idx)
				continue
			}
			consumers[idx]++
		}
		for _, idx := range op.Outputs {
			if idx >= n {
				addf(ErrIndexOutOfRange, "operation[%d] %s output %d", i, op.Type, idx)
				continue
			}
			produced[idx] = true
		}
	}

	inputs := indexSet(m.InputIndexes)
	outputs := indexSet(m.OutputIndexes)
	for _, idx := range m.InputIndexes {
		if idx >= n {
			addf(ErrIndexOutOfRange, "model input %d", idx)
		}
	}
	for _, idx := range m.OutputIndexes {
		if idx >= n {
			addf(ErrIndexOutOfRange, "model output %d", idx)
		}
	}

	for i := uint32(0); i < n; i++ {
		op := m.Operands[i]
		if ElementSize(op.Type) == 0 {
			addf(ErrOperandType, "operand[%d] type %s", i, op.Type)
			continue
		}
		if IsScalar(op.Type) && len(op.Dimensions) != 0 {
			addf(ErrOperandType, "operand[%d] scalar %s has dimensions %v", i, op.Type, op.Dimensions)
		}
		if op.NumberOfConsumers != consumers[i] {
			addf(ErrConsumerCount, "operand[%d] declares %d consumers, referenced %d times", i, op.NumberOfConsumers, consumers[i])
		}
		if consumers[i] == 0 && !produced[i] {
			addf(ErrUnusedOperand, "operand[%d]", i)
		}

		_, isInput := inputs[i]
		_, isOutput := outputs[i]
		if isInput != (op.Lifetime == LifeTimeModelInput) {
			addf(ErrLifetimeMismatch, "operand[%d] lifetime %s, listed as model input: %t", i, op.Lifetime, isInput)
		}
		if isOutput != (op.Lifetime == LifeTimeModelOutput) {
			addf(ErrLifetimeMismatch, "operand[%d] lifetime %s, listed as model output: %t", i, op.Lifetime, isOutput)
		}

		switch op.Lifetime {
		case LifeTimeConstantCopy:
			errs = append(errs, validateConstant(m, i)...)
		case LifeTimeModelInput, LifeTimeModelOutput, LifeTimeTemporaryVariable, LifeTimeNoValue:
			if op.Location != (DataLocation{}) {
				addf(ErrLocation, "operand[%d] %s has location %+v", i, op.Lifetime, op.Location)
			}
		case LifeTimeConstantReference:
			if int(op.Location.PoolIndex) >= len(m.Pools) {
				addf(ErrLocation, "operand[%d] references pool %d of %d", i, op.Location.PoolIndex, len(m.Pools))
			}
		}

		errs = append(errs, validateQuant(i, op)...)
	}

	return errors.Join(errs...)
}

func validateConstant(m Model, i uint32) []error {
	op := m.Operands[i]
	var errs []error
	if op.Location.PoolIndex != 0 {
		errs = append(errs, fmt.Errorf("operand[%d] constant copy in pool %d: %w", i, op.Location.PoolIndex, ErrLocation))
	}
	end := uint64(op.Location.Offset) + uint64(op.Location.Length)
	if end > uint64(len(m.OperandValues)) {
		errs = append(errs, fmt.Errorf("operand[%d] spans [%d,%d) beyond %d value bytes: %w", i, op.Location.Offset, end, len(m.OperandValues), ErrLocation))
	}
	size, err := op.ByteSize()
	if err != nil {
		errs = append(errs, fmt.Errorf("operand[%d] constant: %w", i, err))
		return errs
	}
	if size != uint64(op.Location.Length) {
		errs = append(errs, fmt.Errorf("operand[%d] length %d, want %d for %s%v: %w", i, op.Location.Length, size, op.Type, op.Dimensions, ErrLocation))
	}
	return errs
}

func validateQuant(i uint32, op Operand) []error {
	var errs []error
	cq := op.ExtraParams.ChannelQuant
	switch op.Type {
	case TypeTensorQuant8SymmPerChannel:
		if cq == nil {
			return []error{fmt.Errorf("operand[%d] per-channel operand without channel params: %w", i, ErrQuantParams)}
		}
		if op.Scale != 0 || op.ZeroPoint != 0 {
			errs = append(errs, fmt.Errorf("operand[%d] per-channel scale=%v zeroPoint=%d, want 0: %w", i, op.Scale, op.ZeroPoint, ErrQuantParams))
		}
		if int(cq.ChannelDim) >= len(op.Dimensions) {
			errs = append(errs, fmt.Errorf("operand[%d] channel dim %d out of rank %d: %w", i, cq.ChannelDim, len(op.Dimensions), ErrQuantParams))
			return errs
		}
		if extent := op.Dimensions[cq.ChannelDim]; extent != 0 && uint32(len(cq.Scales)) != extent {
			errs = append(errs, fmt.Errorf("operand[%d] has %d channel scales for extent %d: %w", i, len(cq.Scales), extent, ErrQuantParams))
		}
		for j, s := range cq.Scales {
			if !(s > 0) {
				errs = append(errs, fmt.Errorf("operand[%d] channel scale[%d]=%v: %w", i, j, s, ErrQuantParams))
			}
		}
	case TypeTensorQuant8Asymm:
		if !(op.Scale > 0) {
			errs = append(errs, fmt.Errorf("operand[%d] scale=%v: %w", i, op.Scale, ErrQuantParams))
		}
		if op.ZeroPoint < 0 || op.ZeroPoint > 255 {
			errs = append(errs, fmt.Errorf("operand[%d] zeroPoint=%d: %w", i, op.ZeroPoint, ErrQuantParams))
		}
	default:
		if cq != nil {
			errs = append(errs, fmt.Errorf("operand[%d] %s carries channel params: %w", i, op.Type, ErrQuantParams))
		}
	}
	return errs
}

func indexSet(idx []uint32) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(idx))
	for _, i := range idx {
		out[i] = struct{}{}
	}
	return out
}
