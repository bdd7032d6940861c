// boxxy boxes a program so that declarative rules silently redirect
// specific filesystem paths it touches to alternate locations.
//
// Usage:
//
//	boxxy [flags] -- <program> [args...]
//	boxxy config
//	boxxy validate [program]
//	boxxy selfcheck
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/docker/pkg/reexec"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/queer/boxxy/internal/config"
	"github.com/queer/boxxy/internal/enclosure"
	"github.com/queer/boxxy/internal/version"
)

func main() {
	// reexec.Init() hands control to the registered enclosure entry point
	// when this binary was invoked as that re-exec target; it never returns
	// in that case. On a normal invocation it returns false immediately.
	if reexec.Init() {
		return
	}

	var immutable bool
	var logLevel string

	root := &cobra.Command{
		Use:   "boxxy [flags] -- <program> [args...]",
		Short: "Box a program behind declarative filesystem redirects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(logLevel)

			if caps := enclosure.DetectCapabilities(); !caps.CanRunSandbox() {
				return fmt.Errorf("boxxy: %s", caps.SkipReason())
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("boxxy: %w", err)
			}
			rs, err := config.Load(cwd)
			if err != nil {
				return fmt.Errorf("boxxy: loading config: %w", err)
			}

			sup := enclosure.NewSupervisor(rs, immutable, logger)
			sup.LogLevel = logLevel

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runErr := sup.Run(ctx, args)
			if code, ok := enclosure.IsExitError(runErr); ok {
				os.Exit(code)
			}
			if sig, ok := runErr.(*enclosure.ChildSignal); ok {
				os.Exit(128 + sig.Signal)
			}
			if execErr, ok := runErr.(*enclosure.ExecError); ok {
				logger.Error("exec failed", "program", execErr.Program, "error", execErr.Err)
				os.Exit(126)
			}
			if runErr != nil {
				logger.Error("enclosure failed", "error", runErr)
				os.Exit(1)
			}
			return nil
		},
	}
	root.Flags().BoolVarP(&immutable, "immutable", "i", false, "remount the box's root read-only after redirects are installed")
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn, error")
	root.Flags().SetInterspersed(false)

	root.AddCommand(newConfigCmd())
	root.AddCommand(newValidateCmd(&logLevel))
	root.AddCommand(newSelfcheckCmd(&logLevel))
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "boxxy: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a structured logger at the given level, colorized when
// stderr is a terminal and plain otherwise.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	noColor := os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stderr.Fd()))
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:   lvl,
		NoColor: noColor,
	}))
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the merged rule set as YAML and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			rs, err := config.Load(cwd)
			if err != nil {
				return err
			}
			out, err := config.MarshalRuleSet(rs)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newValidateCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [program]",
		Short: "Run pre-flight checks without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			rs, err := config.Load(cwd)
			if err != nil {
				return err
			}

			v := enclosure.NewValidator()
			v.ValidateUserNamespaces()
			v.ValidateTmpWritable()
			if len(args) > 0 {
				v.ValidateProgram(args[0])
				v.ValidateRules(rs, cwd, args[0])
			}
			v.PrintResults(cmd.OutOrStdout())
			if v.HasErrors() {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
}

func newSelfcheckCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "selfcheck",
		Short: "Run in-box diagnostics confirming the enclosure's invariants hold",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logLevel)

			if os.Getenv("BOXXY_SANDBOX") != "1" {
				logger.Warn("selfcheck is not running inside a box; results will not reflect real isolation")
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			rs, err := config.Load(cwd)
			if err != nil {
				return err
			}
			matched := enclosure.Select(rs, cwd, os.Args[0], logger)

			runner := enclosure.NewRunner(matched)
			results := runner.RunAll()
			enclosure.PrintResults(cmd.OutOrStdout(), results)
			if enclosure.HasFailures(results) {
				return fmt.Errorf("selfcheck found violated invariants")
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return nil
		},
	}
}
