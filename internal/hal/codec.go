package hal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	containerMagic   = "NNVM"
	containerVersion = 1

	// Caps applied while decoding so a corrupt count cannot trigger a huge
	// allocation.
	maxDecodeItems  = 1 << 20
	maxDecodeValues = 1 << 30
	maxDecodeString = 1 << 16
)

var (
	ErrInvalidMagic       = errors.New("invalid nnvm magic")
	ErrUnsupportedVersion = errors.New("unsupported nnvm version")
)

type Header struct {
	Version        uint32
	OperandCount   uint64
	OperationCount uint64
}

func ReadFile(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return Model{}, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

func WriteFile(path string, m Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, m); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func DecodeHeader(r io.Reader) (Header, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Header{}, fmt.Errorf("read magic: %w", err)
	}
	if string(magic[:]) != containerMagic {
		return Header{}, ErrInvalidMagic
	}

	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return Header{}, fmt.Errorf("read version: %w", err)
	}
	if h.Version != containerVersion {
		return Header{}, fmt.Errorf("version %d: %w", h.Version, ErrUnsupportedVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.OperandCount); err != nil {
		return Header{}, fmt.Errorf("read operand count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.OperationCount); err != nil {
		return Header{}, fmt.Errorf("read operation count: %w", err)
	}
	return h, nil
}

func Decode(r io.Reader) (Model, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return Model{}, err
	}
	if h.OperandCount > maxDecodeItems || h.OperationCount > maxDecodeItems {
		return Model{}, fmt.Errorf("header counts operands=%d operations=%d too large", h.OperandCount, h.OperationCount)
	}

	m := Model{
		Operands:   make([]Operand, 0, h.OperandCount),
		Operations: make([]Operation, 0, h.OperationCount),
	}
	for i := uint64(0); i < h.OperandCount; i++ {
		op, err := readOperand(r)
		if err != nil {
			return Model{}, fmt.Errorf("read operand[%d]: %w", i, err)
		}
		m.Operands = append(m.Operands, op)
	}
	for i := uint64(0); i < h.OperationCount; i++ {
		op, err := readOperation(r)
		if err != nil {
			return Model{}, fmt.Errorf("read operation[%d]: %w", i, err)
		}
		m.Operations = append(m.Operations, op)
	}
	if m.InputIndexes, err = readUint32List(r); err != nil {
		return Model{}, fmt.Errorf("read input indexes: %w", err)
	}
	if m.OutputIndexes, err = readUint32List(r); err != nil {
		return Model{}, fmt.Errorf("read output indexes: %w", err)
	}

	n, err := readUint64(r)
	if err != nil {
		return Model{}, fmt.Errorf("read operand values size: %w", err)
	}
	if n > maxDecodeValues {
		return Model{}, fmt.Errorf("operand values size %d too large", n)
	}
	m.OperandValues = make([]byte, n)
	if _, err := io.ReadFull(r, m.OperandValues); err != nil {
		return Model{}, fmt.Errorf("read operand values: %w", err)
	}

	pools, err := readUint32(r)
	if err != nil {
		return Model{}, fmt.Errorf("read pool count: %w", err)
	}
	if pools > maxDecodeItems {
		return Model{}, fmt.Errorf("pool count %d too large", pools)
	}
	m.Pools = make([]Memory, 0, pools)
	for i := uint32(0); i < pools; i++ {
		name, err := readString(r)
		if err != nil {
			return Model{}, fmt.Errorf("read pool[%d] name: %w", i, err)
		}
		size, err := readUint64(r)
		if err != nil {
			return Model{}, fmt.Errorf("read pool[%d] size: %w", i, err)
		}
		m.Pools = append(m.Pools, Memory{Name: name, Size: size})
	}

	relaxed, err := readBool(r)
	if err != nil {
		return Model{}, fmt.Errorf("read relaxed flag: %w", err)
	}
	m.RelaxComputationFloat32toFloat16 = relaxed
	return m, nil
}

func readOperand(r io.Reader) (Operand, error) {
	var op Operand
	t, err := readUint32(r)
	if err != nil {
		return Operand{}, err
	}
	op.Type = OperandType(t)
	if op.Dimensions, err = readUint32List(r); err != nil {
		return Operand{}, fmt.Errorf("dimensions: %w", err)
	}
	if op.NumberOfConsumers, err = readUint32(r); err != nil {
		return Operand{}, err
	}
	if op.Scale, err = readFloat32(r); err != nil {
		return Operand{}, err
	}
	if op.ZeroPoint, err = readInt32(r); err != nil {
		return Operand{}, err
	}
	lt, err := readUint32(r)
	if err != nil {
		return Operand{}, err
	}
	op.Lifetime = OperandLifeTime(lt)
	if err := binary.Read(r, binary.LittleEndian, &op.Location); err != nil {
		return Operand{}, fmt.Errorf("location: %w", err)
	}

	hasChannelQuant, err := readBool(r)
	if err != nil {
		return Operand{}, err
	}
	if !hasChannelQuant {
		return op, nil
	}
	dim, err := readUint32(r)
	if err != nil {
		return Operand{}, fmt.Errorf("channel dim: %w", err)
	}
	count, err := readUint32(r)
	if err != nil {
		return Operand{}, fmt.Errorf("channel scale count: %w", err)
	}
	if count > maxDecodeItems {
		return Operand{}, fmt.Errorf("channel scale count %d too large", count)
	}
	scales := make([]float32, count)
	if err := binary.Read(r, binary.LittleEndian, scales); err != nil {
		return Operand{}, fmt.Errorf("channel scales: %w", err)
	}
	op.ExtraParams.ChannelQuant = &SymmPerChannelQuantParams{Scales: scales, ChannelDim: dim}
	return op, nil
}

func readOperation(r io.Reader) (Operation, error) {
	t, err := readUint32(r)
	if err != nil {
		return Operation{}, err
	}
	op := Operation{Type: OperationType(t)}
	if op.Inputs, err = readUint32List(r); err != nil {
		return Operation{}, fmt.Errorf("inputs: %w", err)
	}
	if op.Outputs, err = readUint32List(r); err != nil {
		return Operation{}, fmt.Errorf("outputs: %w", err)
	}
	return op, nil
}

// Encode writes m in the NNVM container format.
func Encode(w io.Writer, m Model) error {
	ew := &errWriter{w: w}
	ew.bytes([]byte(containerMagic))
	ew.put(uint32(containerVersion))
	ew.put(uint64(len(m.Operands)))
	ew.put(uint64(len(m.Operations)))
	for _, op := range m.Operands {
		ew.put(uint32(op.Type))
		ew.uint32List(op.Dimensions)
		ew.put(op.NumberOfConsumers)
		ew.put(op.Scale)
		ew.put(op.ZeroPoint)
		ew.put(uint32(op.Lifetime))
		ew.put(op.Location)
		cq := op.ExtraParams.ChannelQuant
		if cq == nil {
			ew.put(uint8(0))
			continue
		}
		ew.put(uint8(1))
		ew.put(cq.ChannelDim)
		ew.put(uint32(len(cq.Scales)))
		ew.put(cq.Scales)
	}
	for _, op := range m.Operations {
		ew.put(uint32(op.Type))
		ew.uint32List(op.Inputs)
		ew.uint32List(op.Outputs)
	}
	ew.uint32List(m.InputIndexes)
	ew.uint32List(m.OutputIndexes)
	ew.put(uint64(len(m.OperandValues)))
	ew.bytes(m.OperandValues)
	ew.put(uint32(len(m.Pools)))
	for _, p := range m.Pools {
		ew.put(uint64(len(p.Name)))
		ew.bytes([]byte(p.Name))
		ew.put(p.Size)
	}
	if m.RelaxComputationFloat32toFloat16 {
		ew.put(uint8(1))
	} else {
		ew.put(uint8(0))
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) put(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *errWriter) bytes(b []byte) {
	if e.err != nil || len(b) == 0 {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *errWriter) uint32List(v []uint32) {
	e.put(uint32(len(v)))
	if len(v) > 0 {
		e.put(v)
	}
}

func readUint32List(r io.Reader) ([]uint32, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxDecodeItems {
		return nil, fmt.Errorf("list length %d too large", n)
	}
	out := make([]uint32, n)
	if n == 0 {
		return out, nil
	}
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint64(r)
	if err != nil {
		return "", err
	}
	if n > maxDecodeString {
		return "", fmt.Errorf("string length %d too large", n)
	}
	buf := make([]byte, int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readFloat32(r io.Reader) (float32, error) {
	var v float32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readBool(r io.Reader) (bool, error) {
	var b uint8
	if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
		return false, err
	}
	return b != 0, nil
}
