package hal

import "fmt"

type OperandType uint32

const (
	TypeFloat32                    OperandType = 0
	TypeInt32                      OperandType = 1
	TypeUint32                     OperandType = 2
	TypeTensorFloat32              OperandType = 3
	TypeTensorInt32                OperandType = 4
	TypeTensorQuant8Asymm          OperandType = 5
	TypeBool                       OperandType = 6
	TypeTensorQuant16Symm          OperandType = 7
	TypeTensorFloat16              OperandType = 8
	TypeTensorBool8                OperandType = 9
	TypeFloat16                    OperandType = 10
	TypeTensorQuant8SymmPerChannel OperandType = 11
	TypeTensorQuant16Asymm         OperandType = 12
	TypeTensorQuant8Symm           OperandType = 13
)

var operandTypeNames = map[OperandType]string{
	TypeFloat32:                    "FLOAT32",
	TypeInt32:                      "INT32",
	TypeUint32:                     "UINT32",
	TypeTensorFloat32:              "TENSOR_FLOAT32",
	TypeTensorInt32:                "TENSOR_INT32",
	TypeTensorQuant8Asymm:          "TENSOR_QUANT8_ASYMM",
	TypeBool:                       "BOOL",
	TypeTensorQuant16Symm:          "TENSOR_QUANT16_SYMM",
	TypeTensorFloat16:              "TENSOR_FLOAT16",
	TypeTensorBool8:                "TENSOR_BOOL8",
	TypeFloat16:                    "FLOAT16",
	TypeTensorQuant8SymmPerChannel: "TENSOR_QUANT8_SYMM_PER_CHANNEL",
	TypeTensorQuant16Asymm:         "TENSOR_QUANT16_ASYMM",
	TypeTensorQuant8Symm:           "TENSOR_QUANT8_SYMM",
}

func (t OperandType) String() string {
	if s, ok := operandTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("OperandType(%d)", uint32(t))
}

// ParseOperandType is the inverse of String.
func ParseOperandType(s string) (OperandType, error) {
	for t, name := range operandTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown operand type %q", s)
}

// ElementSize returns the byte size of one element of t, or 0 for unknown types.
func ElementSize(t OperandType) int {
	switch t {
	case TypeTensorQuant8Asymm, TypeBool, TypeTensorBool8, TypeTensorQuant8SymmPerChannel, TypeTensorQuant8Symm:
		return 1
	case TypeTensorQuant16Symm, TypeTensorFloat16, TypeFloat16, TypeTensorQuant16Asymm:
		return 2
	case TypeFloat32, TypeInt32, TypeUint32, TypeTensorFloat32, TypeTensorInt32:
		return 4
	default:
		return 0
	}
}

func IsScalar(t OperandType) bool {
	switch t {
	case TypeFloat32, TypeInt32, TypeUint32, TypeBool, TypeFloat16:
		return true
	default:
		return false
	}
}

func IsTensor(t OperandType) bool {
	return ElementSize(t) > 0 && !IsScalar(t)
}

// IsFloat reports whether t holds IEEE floating point values.
func IsFloat(t OperandType) bool {
	switch t {
	case TypeFloat32, TypeTensorFloat32, TypeFloat16, TypeTensorFloat16:
		return true
	default:
		return false
	}
}

func IsQuantized(t OperandType) bool {
	switch t {
	case TypeTensorQuant8Asymm, TypeTensorQuant16Symm, TypeTensorQuant8SymmPerChannel, TypeTensorQuant16Asymm, TypeTensorQuant8Symm:
		return true
	default:
		return false
	}
}

type OperandLifeTime uint32

const (
	LifeTimeTemporaryVariable OperandLifeTime = 0
	LifeTimeModelInput        OperandLifeTime = 1
	LifeTimeModelOutput       OperandLifeTime = 2
	LifeTimeConstantCopy      OperandLifeTime = 3
	LifeTimeConstantReference OperandLifeTime = 4
	LifeTimeNoValue           OperandLifeTime = 5
)

var lifeTimeNames = [...]string{
	LifeTimeTemporaryVariable: "TEMPORARY_VARIABLE",
	LifeTimeModelInput:        "MODEL_INPUT",
	LifeTimeModelOutput:       "MODEL_OUTPUT",
	LifeTimeConstantCopy:      "CONSTANT_COPY",
	LifeTimeConstantReference: "CONSTANT_REFERENCE",
	LifeTimeNoValue:           "NO_VALUE",
}

func (l OperandLifeTime) String() string {
	if int(l) < len(lifeTimeNames) {
		return lifeTimeNames[l]
	}
	return fmt.Sprintf("OperandLifeTime(%d)", uint32(l))
}

func ParseOperandLifeTime(s string) (OperandLifeTime, error) {
	for i, name := range lifeTimeNames {
		if name == s {
			return OperandLifeTime(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operand lifetime %q", s)
}

type OperationType uint32

const (
	OperationAdd             OperationType = 0
	OperationAveragePool2D   OperationType = 1
	OperationConcatenation   OperationType = 2
	OperationConv2D          OperationType = 3
	OperationDepthwiseConv2D OperationType = 4
	OperationDepthToSpace    OperationType = 5
	OperationDequantize      OperationType = 6
	OperationEmbeddingLookup OperationType = 7
	OperationFloor           OperationType = 8
	OperationFullyConnected  OperationType = 9
)

var operationTypeNames = [...]string{
	OperationAdd:             "ADD",
	OperationAveragePool2D:   "AVERAGE_POOL_2D",
	OperationConcatenation:   "CONCATENATION",
	OperationConv2D:          "CONV_2D",
	OperationDepthwiseConv2D: "DEPTHWISE_CONV_2D",
	OperationDepthToSpace:    "DEPTH_TO_SPACE",
	OperationDequantize:      "DEQUANTIZE",
	OperationEmbeddingLookup: "EMBEDDING_LOOKUP",
	OperationFloor:           "FLOOR",
	OperationFullyConnected:  "FULLY_CONNECTED",
}

func (o OperationType) String() string {
	if int(o) < len(operationTypeNames) {
		return operationTypeNames[o]
	}
	return fmt.Sprintf("OperationType(%d)", uint32(o))
}

func ParseOperationType(s string) (OperationType, error) {
	for i, name := range operationTypeNames {
		if name == s {
			return OperationType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operation type %q", s)
}

// Fused activation codes accepted by convolution operations.
const (
	FusedNone  int32 = 0
	FusedRelu  int32 = 1
	FusedRelu1 int32 = 2
	FusedRelu6 int32 = 3
)

// Implicit padding schemes.
const (
	PaddingSame  int32 = 1
	PaddingValid int32 = 2
)
