// Package nnvts exposes the DEPTHWISE_CONV_2D validation fixtures: listing,
// lookup, export, self-checking and Go source emission.
package nnvts

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"nnvts/internal/catalogue"
	"nnvts/internal/check"
	"nnvts/internal/export"
	"nnvts/internal/hal"
	"nnvts/internal/logging"
	"nnvts/internal/testgen"
)

type (
	Model     = hal.Model
	TestModel = testgen.TestModel
	Variant   = testgen.Variant
)

type GroupInfo struct {
	Name     string
	Fixtures int
}

type FixtureInfo struct {
	Group   string
	Name    string
	Example string
	Variant Variant
	Inputs  int
	Outputs int
}

type ExportRequest struct {
	Dir    string
	Format string
}

type CheckRequest struct {
	Workers int
}

type CheckFailure struct {
	Group string
	Name  string
	Err   error
}

type CheckResult struct {
	RunID    string
	Passed   int
	Failed   int
	Failures []CheckFailure
}

type Suite struct {
	groups []catalogue.Group
	logger *zap.Logger
}

// Open selects the named groups, or every group when none are named.
func Open(logger *zap.Logger, groups ...string) (*Suite, error) {
	gs, err := catalogue.Select(groups...)
	if err != nil {
		return nil, err
	}
	return &Suite{groups: gs, logger: logging.OrNop(logger)}, nil
}

func (s *Suite) Groups() []GroupInfo {
	out := make([]GroupInfo, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, GroupInfo{Name: g.Name, Fixtures: len(g.Models)})
	}
	return out
}

// Models returns every fixture of the suite in group order.
func (s *Suite) Models() []TestModel {
	var out []TestModel
	for _, g := range s.groups {
		out = append(out, g.Models...)
	}
	return out
}

func (s *Suite) Fixtures() []FixtureInfo {
	models := s.Models()
	out := make([]FixtureInfo, 0, len(models))
	for _, tm := range models {
		m := tm.Create()
		out = append(out, FixtureInfo{
			Group:   tm.Group,
			Name:    tm.Name,
			Example: tm.ExampleName,
			Variant: tm.Variant,
			Inputs:  len(m.InputIndexes),
			Outputs: len(m.OutputIndexes),
		})
	}
	return out
}

func (s *Suite) Find(group, name string) (TestModel, error) {
	for _, g := range s.groups {
		if g.Name != group {
			continue
		}
		return catalogue.Find(group, name)
	}
	return TestModel{}, fmt.Errorf("%q: %w", group, catalogue.ErrUnknownGroup)
}

// Dump writes one fixture to w in the named format.
func (s *Suite) Dump(w io.Writer, group, name, format string) error {
	tm, err := s.Find(group, name)
	if err != nil {
		return err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	return export.Write(w, f, export.NewFixture(tm))
}

func (s *Suite) Export(ctx context.Context, req ExportRequest) ([]string, error) {
	f, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, g := range s.groups {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		written, err := export.WriteDir(req.Dir, f, g.Models, s.logger)
		paths = append(paths, written...)
		if err != nil {
			return paths, err
		}
		s.logger.Info("exported group", zap.String("group", g.Name), zap.Int("files", len(written)))
	}
	return paths, nil
}

func (s *Suite) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	if req.Workers < 0 {
		return CheckResult{}, fmt.Errorf("workers must be >= 0")
	}
	report, err := check.Run(ctx, s.Models(), check.Options{Workers: req.Workers, Logger: s.logger})
	if err != nil {
		return CheckResult{}, err
	}
	failures := make([]CheckFailure, 0, report.Failed)
	for _, res := range report.Failures() {
		failures = append(failures, CheckFailure{Group: res.Group, Name: res.Name, Err: res.Err})
	}
	return CheckResult{
		RunID:    report.RunID,
		Passed:   report.Passed,
		Failed:   report.Failed,
		Failures: failures,
	}, nil
}

// Emit writes Go source with a constructor and an ignore predicate for every
// fixture of group.
func (s *Suite) Emit(w io.Writer, group, pkg string) error {
	for _, g := range s.groups {
		if g.Name == group {
			return testgen.EmitGo(w, pkg, g.Models)
		}
	}
	return fmt.Errorf("%q: %w", group, catalogue.ErrUnknownGroup)
}
