// Package catalogue is the registry of expanded fixture groups.
package catalogue

import (
	"errors"
	"fmt"
	"sort"

	"nnvts/internal/catalogue/depthwiseconv2d"
	"nnvts/internal/testgen"
)

var (
	ErrUnknownGroup   = errors.New("unknown fixture group")
	ErrUnknownFixture = errors.New("unknown fixture")
)

type Group struct {
	Name   string
	Models []testgen.TestModel
}

var registry = []Group{
	{Name: "depthwise_conv2d_v1_2", Models: depthwiseconv2d.V12},
	{Name: "depthwise_conv2d_per_channel", Models: depthwiseconv2d.PerChannel},
	{Name: "depthwise_conv2d_dilation", Models: depthwiseconv2d.Dilation},
}

// Groups returns every registered group sorted by name. The returned slice
// is a copy; the models it references are shared and immutable.
func Groups() []Group {
	out := append([]Group(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func Lookup(name string) (Group, error) {
	for _, g := range registry {
		if g.Name == name {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("%q: %w", name, ErrUnknownGroup)
}

// Find returns the fixture called name in group.
func Find(group, name string) (testgen.TestModel, error) {
	g, err := Lookup(group)
	if err != nil {
		return testgen.TestModel{}, err
	}
	for _, tm := range g.Models {
		if tm.Name == name {
			return tm, nil
		}
	}
	return testgen.TestModel{}, fmt.Errorf("%s/%s: %w", group, name, ErrUnknownFixture)
}

// Select returns the named groups, or every group when names is empty.
func Select(names ...string) ([]Group, error) {
	if len(names) == 0 {
		return Groups(), nil
	}
	out := make([]Group, 0, len(names))
	for _, n := range names {
		g, err := Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
