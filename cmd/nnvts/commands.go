package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nnvts/internal/config"
	"nnvts/internal/hal"
	"nnvts/pkg/nnvts"
)

var (
	dumpFormat string

	exportDir    string
	exportFormat string
	exportGroups []string

	checkWorkers int
	checkGroups  []string

	emitPackage string
	emitOutput  string

	inspectOperands bool
)

var listCmd = &cobra.Command{
	Use:   "list [group]",
	Short: "List fixture groups, or the fixtures of one group",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var dumpCmd = &cobra.Command{
	Use:   "dump <group> <name>",
	Short: "Write one fixture to stdout",
	Args:  cobra.ExactArgs(2),
	RunE:  runDump,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every fixture to <dir>/<group>/<name>.<format>",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every fixture and its examples",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var emitCmd = &cobra.Command{
	Use:   "emit <group>",
	Short: "Generate Go constructors and ignore predicates for a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmit,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.nnvm>",
	Short: "Print the contents of an NNVM model file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to the --config path",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runList(cmd *cobra.Command, args []string) error {
	suite, err := nnvts.Open(logger, args...)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if len(args) == 0 {
		fmt.Fprintln(tw, "GROUP\tFIXTURES")
		for _, g := range suite.Groups() {
			fmt.Fprintf(tw, "%s\t%d\n", g.Name, g.Fixtures)
		}
		return tw.Flush()
	}
	fmt.Fprintln(tw, "NAME\tEXAMPLE\tLAYOUT\tWEIGHT_AS_INPUT\tDYNAMIC\tTYPE\tINPUTS\tOUTPUTS")
	for _, f := range suite.Fixtures() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\t%d\t%d\n",
			f.Name, f.Example, orDash(f.Variant.Layout), f.Variant.WeightAsInput, f.Variant.DynamicOutputShape,
			orDash(f.Variant.DataType), f.Inputs, f.Outputs)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runDump(cmd *cobra.Command, args []string) error {
	suite, err := nnvts.Open(logger, args[0])
	if err != nil {
		return err
	}
	return suite.Dump(cmd.OutOrStdout(), args[0], args[1], dumpFormat)
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := exportDir
	if dir == "" {
		dir = cfg.Export.Dir
	}
	format := exportFormat
	if format == "" {
		format = cfg.Export.Format
	}
	groups := exportGroups
	if len(groups) == 0 {
		groups = cfg.Export.Groups
	}

	suite, err := nnvts.Open(logger, groups...)
	if err != nil {
		return err
	}
	paths, err := suite.Export(cmd.Context(), nnvts.ExportRequest{Dir: dir, Format: format})
	if err != nil {
		return err
	}
	logger.Info("export complete", zap.String("dir", dir), zap.String("format", format), zap.Int("files", len(paths)))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d fixtures to %s\n", len(paths), dir)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	workers := checkWorkers
	if workers == 0 {
		workers = cfg.Check.Workers
	}
	suite, err := nnvts.Open(logger, checkGroups...)
	if err != nil {
		return err
	}
	res, err := suite.Check(cmd.Context(), nnvts.CheckRequest{Workers: workers})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, f := range res.Failures {
		fmt.Fprintf(out, "FAIL %s/%s: %v\n", f.Group, f.Name, f.Err)
	}
	fmt.Fprintf(out, "run=%s passed=%d failed=%d\n", res.RunID, res.Passed, res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d fixtures failed", res.Failed)
	}
	return nil
}

func runEmit(cmd *cobra.Command, args []string) (err error) {
	pkg := emitPackage
	if pkg == "" {
		pkg = cfg.Emit.Package
	}
	suite, err := nnvts.Open(logger, args[0])
	if err != nil {
		return err
	}
	if emitOutput == "" {
		return suite.Emit(cmd.OutOrStdout(), args[0], pkg)
	}

	f, err := os.Create(emitOutput)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := suite.Emit(w, args[0], pkg); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	logger.Info("emitted fixtures", zap.String("group", args[0]), zap.String("file", emitOutput))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	m, err := hal.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read nnvm model: %w", err)
	}
	printModel(cmd.OutOrStdout(), args[0], m, inspectOperands)
	return nil
}

func printModel(w io.Writer, path string, m hal.Model, operands bool) {
	fmt.Fprintf(w, "model=%s operands=%d operations=%d inputs=%v outputs=%v values=%d relaxed=%t\n",
		path, len(m.Operands), len(m.Operations), m.InputIndexes, m.OutputIndexes,
		len(m.OperandValues), m.RelaxComputationFloat32toFloat16)

	fmt.Fprintln(w, "operations:")
	for i, op := range m.Operations {
		fmt.Fprintf(w, "  [%d] %s inputs=%v outputs=%v\n", i, op.Type, op.Inputs, op.Outputs)
	}
	if !operands {
		return
	}
	fmt.Fprintln(w, "operands:")
	for i, op := range m.Operands {
		fmt.Fprintf(w, "  [%d] %s dims=%v lifetime=%s consumers=%d scale=%g zero=%d",
			i, op.Type, op.Dimensions, op.Lifetime, op.NumberOfConsumers, op.Scale, op.ZeroPoint)
		if op.Lifetime == hal.LifeTimeConstantCopy {
			fmt.Fprintf(w, " offset=%d length=%d", op.Location.Offset, op.Location.Length)
		}
		if cq := op.ExtraParams.ChannelQuant; cq != nil {
			fmt.Fprintf(w, " channel_dim=%d scales=%v", cq.ChannelDim, cq.Scales)
		}
		fmt.Fprintln(w)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := config.Default().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	return nil
}
