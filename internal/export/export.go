// Package export writes expanded fixtures to disk as JSON, YAML or NNVM
// binary containers.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"nnvts/internal/hal"
	"nnvts/internal/logging"
	"nnvts/internal/testgen"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatNNVM Format = "nnvm"
)

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatYAML, FormatNNVM:
		return f, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
	}
}

// Ext is the file extension written for f.
func (f Format) Ext() string { return "." + string(f) }

// Fixture is the serialized form of one expanded test model.
type Fixture struct {
	Group       string                `json:"group" yaml:"group"`
	Name        string                `json:"name" yaml:"name"`
	ExampleName string                `json:"exampleName" yaml:"exampleName"`
	Variant     testgen.Variant       `json:"variant" yaml:"variant"`
	Model       hal.Model             `json:"model" yaml:"model"`
	Examples    []testgen.ExampleData `json:"examples" yaml:"examples"`
	Ignored     []int                 `json:"ignored" yaml:"ignored,flow"`
}

func NewFixture(tm testgen.TestModel) Fixture {
	ignored := tm.Ignored
	if ignored == nil {
		ignored = []int{}
	}
	return Fixture{
		Group:       tm.Group,
		Name:        tm.Name,
		ExampleName: tm.ExampleName,
		Variant:     tm.Variant,
		Model:       tm.Create(),
		Examples:    tm.Examples,
		Ignored:     ignored,
	}
}

// Write encodes fx to w. The NNVM format carries only the model.
func Write(w io.Writer, f Format, fx Fixture) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fx)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(fx); err != nil {
			return err
		}
		return enc.Close()
	case FormatNNVM:
		return hal.Encode(w, fx.Model)
	default:
		return fmt.Errorf("%q: %w", f, ErrUnknownFormat)
	}
}

// ReadJSON decodes a fixture written with FormatJSON.
func ReadJSON(r io.Reader) (Fixture, error) {
	var fx Fixture
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fx, nil
}

// ReadYAML decodes a fixture written with FormatYAML.
func ReadYAML(r io.Reader) (Fixture, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fx, nil
}

// Path returns the file path of tm below dir: <dir>/<group>/<name><ext>.
func Path(dir string, f Format, tm testgen.TestModel) string {
	return filepath.Join(dir, tm.Group, tm.Name+f.Ext())
}

// WriteDir writes one file per model and returns the paths written.
func WriteDir(dir string, f Format, models []testgen.TestModel, logger *zap.Logger) ([]string, error) {
	logger = logging.OrNop(logger)
	paths := make([]string, 0, len(models))
	for _, tm := range models {
		path := Path(dir, f, tm)
		if err := writeFile(path, f, NewFixture(tm)); err != nil {
			return paths, fmt.Errorf("export %s/%s: %w", tm.Group, tm.Name, err)
		}
		logger.Debug("wrote fixture", zap.String("group", tm.Group), zap.String("name", tm.Name), zap.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, f Format, fx Fixture) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := Write(w, f, fx); err != nil {
		_ = file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
