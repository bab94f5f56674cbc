package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nnvts/internal/config"
	"nnvts/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nnvts",
	Short: "DEPTHWISE_CONV_2D validation fixtures",
	Long: `nnvts lists, exports, checks and emits the DEPTHWISE_CONV_2D validation
test models: every declared case expanded over output shape, layout, weight
placement and data type variations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "json", "Output format: json, yaml or nnvm")

	exportCmd.Flags().StringVarP(&exportDir, "dir", "o", "", "Output directory (default from config)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format: json, yaml or nnvm (default from config)")
	exportCmd.Flags().StringSliceVarP(&exportGroups, "group", "g", nil, "Group to export; repeatable (default: config groups, else all)")

	checkCmd.Flags().IntVarP(&checkWorkers, "workers", "j", 0, "Concurrent checks (default from config)")
	checkCmd.Flags().StringSliceVarP(&checkGroups, "group", "g", nil, "Group to check; repeatable (default all)")

	emitCmd.Flags().StringVarP(&emitPackage, "package", "p", "", "Package clause of the generated file (default from config)")
	emitCmd.Flags().StringVarP(&emitOutput, "output", "o", "", "Output file (default stdout)")

	inspectCmd.Flags().BoolVar(&inspectOperands, "operands", true, "Print the operand table")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
