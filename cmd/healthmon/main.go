// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SibbiesMom23/system-health-monitor/internal/config"
	"github.com/SibbiesMom23/system-health-monitor/internal/pipeline"
	"github.com/SibbiesMom23/system-health-monitor/pkg/probe"
)

const version = "1.0.0"

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nMonitoring interrupted by user.")
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		if isPermission(err) {
			fmt.Fprintln(os.Stderr, "Note: some metrics may require elevated privileges (run with sudo/admin).")
		}
		return exitError
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile        string
		outputDir      string
		format         string
		topProcesses   int
		allConnections bool
		parallel       bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:     "healthmon",
		Short:   "Collect and log a one-shot system health snapshot",
		Long:    "System Health & Integrity Monitor collects CPU, memory, disk, process, and network metrics and writes a timestamped report file.",
		Version: version,
		Args:    cobra.NoArgs,
		// Errors are reported once, with exit-code mapping, in run().
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			// Flags given on the command line override the config file.
			flags := cmd.Flags()
			if flags.Changed("output-dir") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("format") {
				cfg.Format = format
			}
			if flags.Changed("top-processes") {
				cfg.TopProcesses = topProcesses
			}
			if flags.Changed("all-connections") {
				cfg.AllConnections = allConnections
			}
			if flags.Changed("parallel") {
				cfg.Parallel = parallel
			}

			logger, flush, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer flush()

			pl, err := pipeline.New(logger, cfg, probe.NewSystemProbe())
			if err != nil {
				return err
			}

			path, err := pl.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("\nSummary:\n")
			fmt.Printf("  Format: %s\n", cfg.Format)
			fmt.Printf("  Top Processes: %d\n", cfg.TopProcesses)
			fmt.Printf("  All Connections: %v\n", cfg.AllConnections)
			fmt.Printf("  Log File: %s\n", path)
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", defaults.OutputDir, "directory to write report files")
	cmd.Flags().StringVarP(&format, "format", "f", defaults.Format, "output format: json or text")
	cmd.Flags().IntVarP(&topProcesses, "top-processes", "t", defaults.TopProcesses, "number of top processes to include in the report")
	cmd.Flags().BoolVarP(&allConnections, "all-connections", "a", false, "include all network connections, not just the summary")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run the collectors concurrently")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func newLogger(verbose bool) (logr.Logger, func(), error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.DisableStacktrace = true
	zapCfg.DisableCaller = true
	if verbose {
		// logr V(n) maps to negative zap levels under zapr.
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-2))
	} else {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

func isPermission(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}
