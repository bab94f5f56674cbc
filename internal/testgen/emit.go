package testgen

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"nnvts/internal/hal"
)

const halImportPath = "nnvts/internal/hal"

var emitTemplate = template.Must(template.New("fixtures").Funcs(template.FuncMap{
	"operandType": operandTypeIdent,
	"lifetime":    lifetimeIdent,
	"operation":   operationIdent,
	"uints":       uintsLiteral,
	"floats":      floatsLiteral,
	"bytes":       bytesLiteral,
	"float":       floatLiteral,
}).Parse(`// Code generated by nnvts emit. DO NOT EDIT.

package {{.Package}}

import "{{.Import}}"
{{range .Models}}
// CreateTestModel{{.Func}} builds {{.Group}}/{{.Name}}.
func CreateTestModel{{.Func}}() hal.Model {
	return hal.Model{
		Operands: []hal.Operand{
		{{- range .Model.Operands}}
			{
				Type:              {{operandType .Type}},
				Dimensions:        {{uints .Dimensions}},
				NumberOfConsumers: {{.NumberOfConsumers}},
				Scale:             {{float .Scale}},
				ZeroPoint:         {{.ZeroPoint}},
				Lifetime:          {{lifetime .Lifetime}},
				Location:          hal.DataLocation{PoolIndex: {{.Location.PoolIndex}}, Offset: {{.Location.Offset}}, Length: {{.Location.Length}}},
				{{- with .ExtraParams.ChannelQuant}}
				ExtraParams: hal.ExtraParams{ChannelQuant: &hal.SymmPerChannelQuantParams{
					Scales:     {{floats .Scales}},
					ChannelDim: {{.ChannelDim}},
				}},
				{{- end}}
			},
		{{- end}}
		},
		Operations: []hal.Operation{
		{{- range .Model.Operations}}
			{
				Type:    {{operation .Type}},
				Inputs:  {{uints .Inputs}},
				Outputs: {{uints .Outputs}},
			},
		{{- end}}
		},
		InputIndexes:                     {{uints .Model.InputIndexes}},
		OutputIndexes:                    {{uints .Model.OutputIndexes}},
		OperandValues:                    {{bytes .Model.OperandValues}},
		Pools:                            []hal.Memory{},
		RelaxComputationFloat32toFloat16: {{.Model.RelaxComputationFloat32toFloat16}},
	}
}

func IsIgnored{{.Func}}(i int) bool {
	ignore := map[int]bool{ {{- range .Ignored}}{{.}}: true, {{end -}} }
	return ignore[i]
}
{{end}}`))

type emitModel struct {
	Group   string
	Name    string
	Func    string
	Model   hal.Model
	Ignored []int
}

// EmitGo writes a gofmt-ed Go source file declaring one builder and one
// ignore predicate per model, as flat literals.
func EmitGo(w io.Writer, pkg string, models []TestModel) error {
	data := struct {
		Package string
		Import  string
		Models  []emitModel
	}{Package: pkg, Import: halImportPath}

	funcs := map[string]string{}
	for _, tm := range models {
		fn := FuncName(tm.Name)
		if prev, ok := funcs[fn]; ok {
			return fmt.Errorf("fixtures %q and %q both map to function suffix %q", prev, tm.Name, fn)
		}
		funcs[fn] = tm.Name
		data.Models = append(data.Models, emitModel{
			Group:   tm.Group,
			Name:    tm.Name,
			Func:    fn,
			Model:   tm.Create(),
			Ignored: tm.Ignored,
		})
	}

	var buf bytes.Buffer
	if err := emitTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("format generated source: %w", err)
	}
	_, err = w.Write(src)
	return err
}

// FuncName turns a fixture name such as "dynamic_output_shape_nhwc_quant8"
// into the exported suffix "DynamicOutputShapeNhwcQuant8".
func FuncName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	if b.Len() == 0 {
		return "Default"
	}
	return b.String()
}

// enumIdent maps an upper snake case enum name to its Go constant suffix:
// TENSOR_QUANT8_ASYMM becomes TensorQuant8Asymm, CONV_2D becomes Conv2D.
func enumIdent(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		if unicode.IsDigit(rune(part[0])) {
			b.WriteString(part)
			continue
		}
		b.WriteString(part[:1])
		b.WriteString(strings.ToLower(part[1:]))
	}
	return b.String()
}

func operandTypeIdent(t hal.OperandType) string {
	if _, err := hal.ParseOperandType(t.String()); err != nil {
		return fmt.Sprintf("hal.OperandType(%d)", uint32(t))
	}
	return "hal.Type" + enumIdent(t.String())
}

func lifetimeIdent(l hal.OperandLifeTime) string {
	if _, err := hal.ParseOperandLifeTime(l.String()); err != nil {
		return fmt.Sprintf("hal.OperandLifeTime(%d)", uint32(l))
	}
	return "hal.LifeTime" + enumIdent(l.String())
}

func operationIdent(o hal.OperationType) string {
	if _, err := hal.ParseOperationType(o.String()); err != nil {
		return fmt.Sprintf("hal.OperationType(%d)", uint32(o))
	}
	return "hal.Operation" + enumIdent(o.String())
}

func uintsLiteral(v []uint32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatUint(uint64(x), 10)
	}
	return "[]uint32{" + strings.Join(parts, ", ") + "}"
}

func floatLiteral(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func floatsLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = floatLiteral(x)
	}
	return "[]float32{" + strings.Join(parts, ", ") + "}"
}

func bytesLiteral(v []byte) string {
	if len(v) == 0 {
		return "[]uint8{}"
	}
	var b strings.Builder
	b.WriteString("[]uint8{\n")
	for i, x := range v {
		b.WriteString(strconv.Itoa(int(x)))
		b.WriteString(",")
		if i%16 == 15 || i == len(v)-1 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString("}")
	return b.String()
}
