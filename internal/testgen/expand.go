package testgen

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"nnvts/internal/hal"
	"nnvts/internal/quant"
)

const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Variant records which combination of the expansion axes produced a model.
type Variant struct {
	Layout             string `json:"layout,omitempty" yaml:"layout,omitempty"`
	WeightAsInput      bool   `json:"weightAsInput" yaml:"weightAsInput"`
	DynamicOutputShape bool   `json:"dynamicOutputShape" yaml:"dynamicOutputShape"`
	DataType           string `json:"dataType,omitempty" yaml:"dataType,omitempty"`
}

// Tensor is one example operand value, encoded in the operand's type. Dims
// are always concrete, also for dynamically shaped outputs.
type Tensor struct {
	Index uint32          `json:"index" yaml:"index"`
	Type  hal.OperandType `json:"type" yaml:"type"`
	Dims  []uint32        `json:"dims" yaml:"dims,flow"`
	Data  []byte          `json:"data" yaml:"data,flow"`
}

type ExampleData struct {
	Inputs  []Tensor `json:"inputs" yaml:"inputs"`
	Outputs []Tensor `json:"outputs" yaml:"outputs"`
}

// TestModel is one expanded fixture. Create returns a freshly allocated
// model on every call and is safe for concurrent use, as is IsIgnored.
type TestModel struct {
	Group     string
	Name      string
	Variant   Variant
	Create    func() hal.Model
	IsIgnored func(int) bool
	Examples  []ExampleData

	// ExampleName labels the examples. It equals Name unless the case sets
	// its own example name.
	ExampleName string

	// Ignored lists the output indexes IsIgnored reports as excluded.
	Ignored []int
}

// MustExpand is like Expand but panics if the group is malformed.
func MustExpand(g Group) []TestModel {
	models, err := Expand(g)
	if err != nil {
		panic(err)
	}
	return models
}

// Expand instantiates every case of g over dynamic output shape, layout,
// weight placement and data type, in that nesting order. Each produced model
// is validated.
func Expand(g Group) ([]TestModel, error) {
	seen, seenExamples := map[string]int{}, map[string]int{}
	var out []TestModel
	for ci, c := range g.Cases {
		if err := checkCase(c); err != nil {
			return nil, fmt.Errorf("%s case %d: %w", g.Name, ci, err)
		}
		dtypes := append([]Variation{{}}, c.Variations...)
		for _, dynamic := range []bool{false, true} {
			for _, layout := range layoutsOf(c) {
				for _, weight := range weightPlacementsOf(c) {
					for _, v := range dtypes {
						vr := Variant{
							Layout:             layout,
							WeightAsInput:      weight,
							DynamicOutputShape: dynamic,
							DataType:           v.Name,
						}
						name := uniqueName(seen, VariantName(c.Model.Name, vr))
						exampleName := uniqueName(seenExamples, VariantName(exampleBase(c), vr))
						tm, err := instantiate(c, vr, v)
						if err != nil {
							return nil, fmt.Errorf("%s/%s: %w", g.Name, name, err)
						}
						tm.Group = g.Name
						tm.Name = name
						tm.ExampleName = exampleName
						out = append(out, tm)
					}
				}
			}
		}
	}
	return out, nil
}

// VariantName joins the non-empty name parts of a variant the way the
// fixture names are spelled: model, dynamic_output_shape, layout,
// weight_as_input, data type.
func VariantName(model string, v Variant) string {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	add(model)
	if v.DynamicOutputShape {
		add("dynamic_output_shape")
	}
	add(v.Layout)
	if v.WeightAsInput {
		add("weight_as_input")
	}
	add(v.DataType)
	return strings.Join(parts, "_")
}

func exampleBase(c Case) string {
	if c.ExampleName != "" {
		return c.ExampleName
	}
	return c.Model.Name
}

func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return name + "_" + strconv.Itoa(n)
	}
	return name
}

func layoutsOf(c Case) []string {
	if c.Layout == nil {
		return []string{""}
	}
	return []string{LayoutNHWC, LayoutNCHW}
}

func weightPlacementsOf(c Case) []bool {
	if len(c.WeightAsInput) == 0 {
		return []bool{false}
	}
	return []bool{false, true}
}

func checkCase(c Case) error {
	if c.Model == nil {
		return errors.New("case has no model")
	}
	if len(c.Model.Inputs) == 0 || len(c.Model.Outputs) == 0 {
		return errors.New("model needs inputs and outputs")
	}
	declared := map[*Operand]bool{}
	for _, op := range c.Model.Inputs {
		if op.Kind == KindOutput {
			return fmt.Errorf("output %q used as operation input", op.Name)
		}
		declared[op] = true
	}
	for _, op := range c.Model.Outputs {
		if op.Kind != KindOutput {
			return fmt.Errorf("operand %q used as operation output", op.Name)
		}
		declared[op] = true
	}
	for op := range declared {
		switch op.Kind {
		case KindInput, KindOutput:
			if _, ok := c.Example[op]; !ok {
				return fmt.Errorf("example has no values for %q", op.Name)
			}
		case KindParameter:
			if op.Values == nil {
				return fmt.Errorf("parameter %q has no values", op.Name)
			}
		}
	}
	if c.Layout != nil {
		if !declared[c.Layout] || c.Layout.Type != hal.TypeBool || c.Layout.Kind != KindParameter {
			return fmt.Errorf("layout operand %q must be a BOOL parameter of the operation", c.Layout.Name)
		}
	}
	for _, op := range c.Transpose {
		if !declared[op] || len(op.Dims) != 4 {
			return fmt.Errorf("transposed operand %q must be a rank 4 operand of the operation", op.Name)
		}
	}
	for _, op := range c.WeightAsInput {
		if !declared[op] || op.Kind != KindParameter {
			return fmt.Errorf("weight operand %q must be a parameter of the operation", op.Name)
		}
	}
	for _, v := range c.Variations {
		for op := range v.Quant {
			if !declared[op] {
				return fmt.Errorf("variation %q quantizes undeclared operand %q", v.Name, op.Name)
			}
		}
	}
	return nil
}

type instance struct {
	decl    *Operand
	operand hal.Operand
	dims    []uint32
	values  []float64
}

func instantiate(c Case, vr Variant, v Variation) (TestModel, error) {
	var order []*Operand
	index := map[*Operand]uint32{}
	for _, ops := range [][]*Operand{c.Model.Inputs, c.Model.Outputs} {
		for _, op := range ops {
			if _, ok := index[op]; ok {
				continue
			}
			index[op] = uint32(len(order))
			order = append(order, op)
		}
	}

	weights := map[*Operand]bool{}
	if vr.WeightAsInput {
		for _, op := range c.WeightAsInput {
			weights[op] = true
		}
	}
	transposed := map[*Operand]bool{}
	if vr.Layout == LayoutNCHW {
		for _, op := range c.Transpose {
			transposed[op] = true
		}
	}

	insts := make([]instance, len(order))
	for i, d := range order {
		inst, err := resolveOperand(c, d, vr, v, transposed[d], weights[d])
		if err != nil {
			return TestModel{}, fmt.Errorf("operand %q: %w", d.Name, err)
		}
		insts[i] = inst
	}

	for _, op := range c.Model.Inputs {
		insts[index[op]].operand.NumberOfConsumers++
	}

	var values []byte
	for i := range insts {
		inst := &insts[i]
		if inst.operand.Lifetime != hal.LifeTimeConstantCopy {
			continue
		}
		data, err := EncodeValues(inst.operand.Type, inst.values)
		if err != nil {
			return TestModel{}, fmt.Errorf("operand %q: %w", inst.decl.Name, err)
		}
		inst.operand.Location = hal.DataLocation{
			PoolIndex: 0,
			Offset:    uint32(len(values)),
			Length:    uint32(len(data)),
		}
		values = append(values, data...)
	}

	op := hal.Operation{Type: c.Model.Operation}
	for _, d := range c.Model.Inputs {
		op.Inputs = append(op.Inputs, index[d])
	}
	for _, d := range c.Model.Outputs {
		op.Outputs = append(op.Outputs, index[d])
	}

	recipe := hal.Model{
		Operands:                         make([]hal.Operand, len(insts)),
		Operations:                       []hal.Operation{op},
		InputIndexes:                     []uint32{},
		OutputIndexes:                    []uint32{},
		OperandValues:                    values,
		Pools:                            []hal.Memory{},
		RelaxComputationFloat32toFloat16: v.Relaxed,
	}
	if recipe.OperandValues == nil {
		recipe.OperandValues = []byte{}
	}
	for i, inst := range insts {
		recipe.Operands[i] = inst.operand
		switch inst.operand.Lifetime {
		case hal.LifeTimeModelInput:
			recipe.InputIndexes = append(recipe.InputIndexes, uint32(i))
		case hal.LifeTimeModelOutput:
			recipe.OutputIndexes = append(recipe.OutputIndexes, uint32(i))
		}
	}
	if err := hal.Validate(recipe); err != nil {
		return TestModel{}, err
	}

	ex := ExampleData{}
	for _, i := range recipe.InputIndexes {
		t, err := exampleTensor(i, insts[i])
		if err != nil {
			return TestModel{}, err
		}
		ex.Inputs = append(ex.Inputs, t)
	}
	for _, i := range recipe.OutputIndexes {
		t, err := exampleTensor(i, insts[i])
		if err != nil {
			return TestModel{}, err
		}
		ex.Outputs = append(ex.Outputs, t)
	}

	ignored := append([]int(nil), c.Ignore...)
	sort.Ints(ignored)
	ignore := make(map[int]struct{}, len(ignored))
	for _, i := range ignored {
		ignore[i] = struct{}{}
	}
	return TestModel{
		Variant: vr,
		Create:  func() hal.Model { return recipe.Clone() },
		IsIgnored: func(i int) bool {
			_, ok := ignore[i]
			return ok
		},
		Examples: []ExampleData{ex},
		Ignored:  ignored,
	}, nil
}

func exampleTensor(index uint32, inst instance) (Tensor, error) {
	data, err := EncodeValues(inst.operand.Type, inst.values)
	if err != nil {
		return Tensor{}, fmt.Errorf("example %q: %w", inst.decl.Name, err)
	}
	return Tensor{
		Index: index,
		Type:  inst.operand.Type,
		Dims:  append([]uint32{}, inst.dims...),
		Data:  data,
	}, nil
}

func resolveOperand(c Case, d *Operand, vr Variant, v Variation, transpose, weight bool) (instance, error) {
	inst := instance{decl: d}
	dims := append([]uint32{}, d.Dims...)
	var values []float64
	switch {
	case d == c.Layout:
		values = []float64{0}
		if vr.Layout == LayoutNCHW {
			values[0] = 1
		}
	case d.Kind == KindParameter:
		values = append([]float64(nil), d.Values...)
	default:
		values = append([]float64(nil), c.Example[d]...)
	}

	t, scale, zeroPoint := d.Type, d.Scale, d.ZeroPoint
	cq := cloneChannelQuant(d.ChannelQuant)
	if transpose {
		var err error
		values, dims, err = quant.NHWCToNCHW(values, dims)
		if err != nil {
			return instance{}, err
		}
		cq = nchwChannelQuant(cq)
	}

	if spec, ok := v.Quant[d]; ok {
		specCQ := cloneChannelQuant(spec.ChannelQuant)
		if transpose {
			specCQ = nchwChannelQuant(specCQ)
		}
		q, err := quantizeValues(values, dims, spec, specCQ)
		if err != nil {
			return instance{}, err
		}
		values = q
		t, scale, zeroPoint = spec.Type, spec.Scale, spec.ZeroPoint
		cq = nil
		if !spec.Hidden {
			cq = specCQ
		}
	} else if v.Float16 {
		switch t {
		case hal.TypeTensorFloat32:
			t = hal.TypeTensorFloat16
		case hal.TypeFloat32:
			t = hal.TypeFloat16
		}
	}

	lifetime := hal.LifeTimeConstantCopy
	switch {
	case d.Kind == KindInput || weight:
		lifetime = hal.LifeTimeModelInput
	case d.Kind == KindOutput:
		lifetime = hal.LifeTimeModelOutput
	}

	modelDims := append([]uint32{}, dims...)
	if vr.DynamicOutputShape && d.Kind == KindOutput {
		for i := range modelDims {
			modelDims[i] = 0
		}
	}

	want := 1
	for _, n := range dims {
		want *= int(n)
	}
	if len(values) != want {
		return instance{}, fmt.Errorf("%d values for shape %v", len(values), dims)
	}

	inst.operand = hal.Operand{
		Type:        t,
		Dimensions:  modelDims,
		Scale:       scale,
		ZeroPoint:   zeroPoint,
		Lifetime:    lifetime,
		ExtraParams: hal.ExtraParams{ChannelQuant: cq},
	}
	inst.dims = dims
	inst.values = values
	return inst, nil
}

func quantizeValues(values []float64, dims []uint32, spec QuantSpec, cq *hal.SymmPerChannelQuantParams) ([]float64, error) {
	out := make([]float64, len(values))
	switch spec.Type {
	case hal.TypeTensorQuant8Asymm:
		for i, v := range values {
			out[i] = float64(quant.Asymm8(v, spec.Scale, spec.ZeroPoint))
		}
	case hal.TypeTensorQuant8Symm:
		for i, v := range values {
			out[i] = float64(quant.Symm8(v, spec.Scale))
		}
	case hal.TypeTensorQuant8SymmPerChannel:
		if cq == nil {
			return nil, errors.New("per-channel type without channel params")
		}
		q, err := quant.PerChannel(values, dims, cq.Scales, cq.ChannelDim)
		if err != nil {
			return nil, err
		}
		for i, v := range q {
			out[i] = float64(v)
		}
	case hal.TypeTensorInt32, hal.TypeInt32:
		switch {
		case cq != nil:
			q, err := quant.PerChannelInt32(values, dims, cq.Scales, cq.ChannelDim)
			if err != nil {
				return nil, err
			}
			for i, v := range q {
				out[i] = float64(v)
			}
		case spec.Scale > 0:
			for i, v := range values {
				out[i] = float64(quant.Int32(v, spec.Scale))
			}
		default:
			for i, v := range values {
				out[i] = float64(quant.Int32(v, 1))
			}
		}
	default:
		copy(out, values)
	}
	return out, nil
}

func cloneChannelQuant(p *hal.SymmPerChannelQuantParams) *hal.SymmPerChannelQuantParams {
	if p == nil {
		return nil
	}
	return &hal.SymmPerChannelQuantParams{
		Scales:     append([]float32(nil), p.Scales...),
		ChannelDim: p.ChannelDim,
	}
}

// nchwChannelQuant moves the channel axis of a transposed operand to its
// NCHW position.
func nchwChannelQuant(p *hal.SymmPerChannelQuantParams) *hal.SymmPerChannelQuantParams {
	if p == nil {
		return nil
	}
	p.ChannelDim = [4]uint32{0, 2, 3, 1}[p.ChannelDim%4]
	return p
}
