package enclosure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// Supervisor orchestrates components A-E: it selects the rules that apply
// to an invocation, stages a mirror root, hands off to the Namespace
// Sandbox, waits for the boxed program, and cleans up the staging
// directory. It is the sole entry point external callers (cmd/boxxy) use.
type Supervisor struct {
	RuleSet   RuleSet
	Immutable bool
	LogLevel  string
	Logger    *slog.Logger
}

// NewSupervisor constructs a Supervisor with a default logger if none is
// supplied.
func NewSupervisor(rs RuleSet, immutable bool, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{RuleSet: rs, Immutable: immutable, Logger: logger}
}

// Run boxes argv[0] (resolved via PATH if not already a path) with argv as
// its full argument vector, and blocks until it exits. On success it
// returns nil; on the boxed program's own non-zero exit or signal death it
// returns *ExitError / *ChildSignal; any other error is a supervisor-level
// failure (ConfigError/PathError/NamespaceError/MountError never make it
// this far unless fatal — those are logged and swallowed at the component
// that produced them).
func (s *Supervisor) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("boxxy: no program given")
	}
	program := argv[0]

	cwd, err := os.Getwd()
	if err != nil {
		return &PathError{Path: ".", Reason: err.Error()}
	}

	s.Logger.Info("loaded rules", "count", len(s.RuleSet.Rules))
	matched := Select(s.RuleSet, cwd, program, s.Logger)
	for _, m := range matched {
		s.Logger.Info("applying rule", "name", m.Name)
		s.Logger.Info("redirect", "target", m.Target, "rewrite", m.Rewrite)
	}

	stagingPath, err := StageRoot(ContainersRoot)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := RemoveStage(stagingPath); rmErr != nil {
			s.Logger.Debug("staging directory cleanup failed", "path", stagingPath, "error", rmErr)
		}
	}()

	env := append(os.Environ(), "BOXXY_SANDBOX=1", fmt.Sprintf("BOXXY_IMMUTABLE=%d", boolToInt(s.Immutable)))
	cmd, err := Enter(stagingPath, matched, s.Immutable, program, argv, env, cwd, s.LogLevel)
	if err != nil {
		return err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return translateExit(err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// translateExit turns an *exec.Cmd error into the taxonomy's ChildSignal or
// ExitError, matching spec's "exit code is the child's; 128+N on signal
// death" contract.
func translateExit(err error) error {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return &NamespaceError{Step: "run boxed program", Err: err}
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return &ChildSignal{Signal: int(status.Signal())}
	}
	return &ExitError{Code: exitErr.ExitCode()}
}
