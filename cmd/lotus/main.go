// Command lotus is the CLI entry point: scan, parse, and evaluate a single
// source file.
//
// Grounded on cli/main.go's cobra root command, newCancellableContext's
// SIGINT/SIGTERM wiring, and the deferred-exit-code pattern (os.Exit only
// after every defer has run and all output is flushed), plus
// cmd/devcmd/main.go's simpler flag surface for a single-file CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aledsdavies/lotus/internal/config"
	"github.com/aledsdavies/lotus/internal/diagnostics"
	"github.com/aledsdavies/lotus/internal/evaluator"
	"github.com/aledsdavies/lotus/internal/lexer"
	"github.com/aledsdavies/lotus/internal/parser"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

// run executes the CLI and returns the process exit code, so that main can
// call os.Exit exactly once after every deferred cleanup has happened.
func run() int {
	var (
		noColor bool
		debug   bool
	)

	exitCode := 0
	rootCmd := &cobra.Command{
		Use:           "lotus <path-to-source-file>",
		Short:         "Scan, parse, and evaluate a Lotus source file",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := execute(args[0], noColor, debug)
			exitCode = code
			return err
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI colors in diagnostics")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "force LOG_LEVEL to INFO regardless of configuration")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %s\n", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

func execute(path string, noColor, debug bool) (int, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return 1, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return 1, fmt.Errorf("loading configuration: %w", err)
	}

	diag := diagnostics.New(os.Stderr, !noColor)
	diag.SetMinLevel(cfg.LogLevel)
	if debug {
		diag.SetMinLevel(diagnostics.Info)
	}

	ctx, cancel := newCancellableContext()
	defer cancel()

	tokens := lexer.New(string(source), diag).ScanTokens()
	if diag.HadError() {
		reportIfConfigured(diag, cfg, "scan")
		return 1, fmt.Errorf("aborting before parsing: scanner reported errors")
	}

	stmts := parser.New(tokens, diag).Parse()
	if diag.HadError() {
		reportIfConfigured(diag, cfg, "parse")
		return 1, fmt.Errorf("aborting before evaluation: parser reported errors")
	}
	reportIfConfigured(diag, cfg, "parse")

	eval := evaluator.New(os.Stdout, diag)
	if err := eval.Run(ctx, stmts); err != nil {
		return 1, err
	}
	return 0, nil
}

func reportIfConfigured(diag *diagnostics.Reporter, cfg config.Config, phase string) {
	if cfg.PrintReport {
		diag.PrintSummary(phase)
	}
}

// newCancellableContext cancels its context on SIGINT/SIGTERM, letting
// Ctrl+C unwind the evaluator at its next statement boundary.
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
