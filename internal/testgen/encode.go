package testgen

import (
	"encoding/binary"
	"fmt"
	"math"

	"nnvts/internal/hal"
	"nnvts/internal/quant"
)

// EncodeValues serializes values, already expressed in the storage domain of
// t, as little-endian bytes.
func EncodeValues(t hal.OperandType, values []float64) ([]byte, error) {
	size := hal.ElementSize(t)
	if size == 0 {
		return nil, fmt.Errorf("cannot encode values of type %s", t)
	}
	out := make([]byte, len(values)*size)
	for i, v := range values {
		dst := out[i*size : (i+1)*size]
		switch t {
		case hal.TypeFloat32, hal.TypeTensorFloat32:
			binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
		case hal.TypeFloat16, hal.TypeTensorFloat16:
			binary.LittleEndian.PutUint16(dst, quant.Float16Bits(v))
		case hal.TypeInt32, hal.TypeTensorInt32:
			binary.LittleEndian.PutUint32(dst, uint32(int32(math.Round(v))))
		case hal.TypeUint32:
			binary.LittleEndian.PutUint32(dst, uint32(math.Round(v)))
		case hal.TypeBool, hal.TypeTensorBool8:
			if v != 0 {
				dst[0] = 1
			}
		case hal.TypeTensorQuant8Asymm:
			if v < 0 || v > math.MaxUint8 {
				return nil, fmt.Errorf("value[%d]=%v out of range for %s", i, v, t)
			}
			dst[0] = uint8(v)
		case hal.TypeTensorQuant8SymmPerChannel, hal.TypeTensorQuant8Symm:
			if v < math.MinInt8 || v > math.MaxInt8 {
				return nil, fmt.Errorf("value[%d]=%v out of range for %s", i, v, t)
			}
			dst[0] = byte(int8(v))
		case hal.TypeTensorQuant16Symm:
			binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
		case hal.TypeTensorQuant16Asymm:
			binary.LittleEndian.PutUint16(dst, uint16(v))
		default:
			return nil, fmt.Errorf("cannot encode values of type %s", t)
		}
	}
	return out, nil
}

// DecodeValues is the inverse of EncodeValues.
func DecodeValues(t hal.OperandType, data []byte) ([]float64, error) {
	size := hal.ElementSize(t)
	if size == 0 {
		return nil, fmt.Errorf("cannot decode values of type %s", t)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a multiple of %s element size %d", len(data), t, size)
	}
	out := make([]float64, len(data)/size)
	for i := range out {
		src := data[i*size : (i+1)*size]
		switch t {
		case hal.TypeFloat32, hal.TypeTensorFloat32:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(src)))
		case hal.TypeFloat16, hal.TypeTensorFloat16:
			out[i] = float64(quant.Float16FromBits(binary.LittleEndian.Uint16(src)))
		case hal.TypeInt32, hal.TypeTensorInt32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(src)))
		case hal.TypeUint32:
			out[i] = float64(binary.LittleEndian.Uint32(src))
		case hal.TypeBool, hal.TypeTensorBool8:
			if src[0] != 0 {
				out[i] = 1
			}
		case hal.TypeTensorQuant8Asymm:
			out[i] = float64(src[0])
		case hal.TypeTensorQuant8SymmPerChannel, hal.TypeTensorQuant8Symm:
			out[i] = float64(int8(src[0]))
		case hal.TypeTensorQuant16Symm:
			out[i] = float64(int16(binary.LittleEndian.Uint16(src)))
		case hal.TypeTensorQuant16Asymm:
			out[i] = float64(binary.LittleEndian.Uint16(src))
		default:
			return nil, fmt.Errorf("cannot decode values of type %s", t)
		}
	}
	return out, nil
}
