// Package check verifies expanded fixtures: every model must validate,
// Create must be deterministic and allocate fresh memory, examples must
// line up with the model's input and output operands, and no output may be
// ignored.
package check

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nnvts/internal/hal"
	"nnvts/internal/logging"
	"nnvts/internal/testgen"
)

var (
	ErrNondeterministic = errors.New("create returned different models")
	ErrSharedMemory     = errors.New("created models share memory")
	ErrExample          = errors.New("example does not match model")
	ErrIgnoredOutput    = errors.New("output is ignored")
)

type Options struct {
	// Workers bounds the number of fixtures checked at once. Zero means
	// GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

type Result struct {
	Group string
	Name  string
	Err   error
}

func (r Result) Passed() bool { return r.Err == nil }

type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Results  []Result
	Passed   int
	Failed   int
}

// Failures returns the failing results in input order.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed() {
			out = append(out, res)
		}
	}
	return out
}

// Run checks every model and returns one result per model in input order.
// The returned error is non-nil only when ctx is cancelled; fixture
// failures are reported in the Report.
func Run(ctx context.Context, models []testgen.TestModel, opts Options) (Report, error) {
	logger := logging.OrNop(opts.Logger)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	report := Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Results: make([]Result, len(models)),
	}
	logger = logger.With(zap.String("run", report.RunID))
	logger.Info("checking fixtures", zap.Int("fixtures", len(models)), zap.Int("workers", workers))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, tm := range models {
		i, tm := i, tm // per-iteration copy (pre-Go 1.22 loop semantics)
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			err := Fixture(tm)
			report.Results[i] = Result{Group: tm.Group, Name: tm.Name, Err: err}
			if err != nil {
				logger.Warn("fixture failed", zap.String("group", tm.Group), zap.String("name", tm.Name), zap.Error(err))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, err
	}

	for _, res := range report.Results {
		if res.Passed() {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(report.Started)
	logger.Info("check finished",
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Duration))
	return report, nil
}

// Fixture runs every check against one model and joins the failures.
func Fixture(tm testgen.TestModel) error {
	a := tm.Create()
	var errs []error
	if err := hal.Validate(a); err != nil {
		errs = append(errs, err)
	}
	if err := checkExamples(a, tm.Examples); err != nil {
		errs = append(errs, err)
	}
	if err := checkFresh(tm); err != nil {
		errs = append(errs, err)
	}
	for i := range a.OutputIndexes {
		if tm.IsIgnored(i) {
			errs = append(errs, fmt.Errorf("output %d: %w", i, ErrIgnoredOutput))
		}
	}
	return errors.Join(errs...)
}

// checkFresh creates two models, compares them, then scribbles over the
// first and verifies the second and a third are unchanged.
func checkFresh(tm testgen.TestModel) error {
	a, b := tm.Create(), tm.Create()
	if diff := cmp.Diff(a, b); diff != "" {
		return fmt.Errorf("%w (-first +second):\n%s", ErrNondeterministic, diff)
	}
	want := b.Clone()
	scribble(a)
	if diff := cmp.Diff(want, b); diff != "" {
		return fmt.Errorf("%w (-before +after):\n%s", ErrSharedMemory, diff)
	}
	if diff := cmp.Diff(want, tm.Create()); diff != "" {
		return fmt.Errorf("%w with the recipe (-before +after):\n%s", ErrSharedMemory, diff)
	}
	return nil
}

// scribble overwrites every mutable part of m.
func scribble(m hal.Model) {
	for i := range m.OperandValues {
		m.OperandValues[i] ^= 0xff
	}
	for i := range m.Operands {
		op := &m.Operands[i]
		for j := range op.Dimensions {
			op.Dimensions[j]++
		}
		if cq := op.ExtraParams.ChannelQuant; cq != nil {
			cq.ChannelDim++
			for j := range cq.Scales {
				cq.Scales[j] *= 2
			}
		}
	}
	for i := range m.Operations {
		for j := range m.Operations[i].Inputs {
			m.Operations[i].Inputs[j]++
		}
	}
	for i := range m.InputIndexes {
		m.InputIndexes[i]++
	}
	for i := range m.OutputIndexes {
		m.OutputIndexes[i]++
	}
}

func checkExamples(m hal.Model, examples []testgen.ExampleData) error {
	if len(examples) == 0 {
		return fmt.Errorf("%w: no examples", ErrExample)
	}
	for i, ex := range examples {
		if err := checkTensors(m, m.InputIndexes, ex.Inputs); err != nil {
			return fmt.Errorf("example %d inputs: %w", i, err)
		}
		if err := checkTensors(m, m.OutputIndexes, ex.Outputs); err != nil {
			return fmt.Errorf("example %d outputs: %w", i, err)
		}
	}
	return nil
}

func checkTensors(m hal.Model, indexes []uint32, tensors []testgen.Tensor) error {
	if len(tensors) != len(indexes) {
		return fmt.Errorf("%w: %d tensors for %d operands", ErrExample, len(tensors), len(indexes))
	}
	for i, t := range tensors {
		if t.Index != indexes[i] {
			return fmt.Errorf("%w: tensor %d has index %d, want %d", ErrExample, i, t.Index, indexes[i])
		}
		if int(t.Index) >= len(m.Operands) {
			return fmt.Errorf("%w: operand %d out of range", ErrExample, t.Index)
		}
		op := m.Operands[t.Index]
		if t.Type != op.Type {
			return fmt.Errorf("%w: operand %d type %s, model has %s", ErrExample, t.Index, t.Type, op.Type)
		}
		shape := hal.Operand{Type: t.Type, Dimensions: t.Dims}
		size, err := shape.ByteSize()
		if err != nil {
			return fmt.Errorf("%w: operand %d: %v", ErrExample, t.Index, err)
		}
		if uint64(len(t.Data)) != size {
			return fmt.Errorf("%w: operand %d has %d bytes, want %d", ErrExample, t.Index, len(t.Data), size)
		}
		if !op.HasUnspecifiedDimensions() && !cmp.Equal(op.Dimensions, t.Dims) {
			return fmt.Errorf("%w: operand %d dims %v, model has %v", ErrExample, t.Index, t.Dims, op.Dimensions)
		}
	}
	return nil
}
