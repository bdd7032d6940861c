package enclosure

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// CheckCategory groups selfcheck checks by which testable property they
// exercise.
type CheckCategory string

const (
	CategoryImmutable CheckCategory = "immutable"
	CategoryRedirect  CheckCategory = "redirect"
	CategoryIsolation CheckCategory = "isolation"
)

// Check is a single named, in-process diagnostic. Run returns nil if the
// invariant held, or an error describing the violation.
type Check struct {
	Name     string
	Category CheckCategory
	Run      func() error
}

// CheckResult pairs a Check with the outcome of running it.
type CheckResult struct {
	Check Check
	Err   error
}

// Runner holds the set of checks to execute inside a running box. It
// mirrors the escape-test-runner shape used elsewhere in the pack for
// isolation diagnostics, but exercises boxxy's own invariants (spec
// properties 1, 3, 5) instead of network escape vectors.
type Runner struct {
	checks []Check
}

// NewRunner builds a Runner with the standard immutability check plus one
// redirect-equivalence and one isolation check per selected rule.
func NewRunner(rules []MatchedRule) *Runner {
	r := &Runner{}
	r.checks = append(r.checks, Check{
		Name:     "immutable-root",
		Category: CategoryImmutable,
		Run:      checkImmutableRoot,
	})
	for _, rule := range rules {
		rule := rule
		r.checks = append(r.checks, Check{
			Name:     fmt.Sprintf("redirect-equivalence:%s", rule.Name),
			Category: CategoryRedirect,
			Run:      func() error { return checkRedirectEquivalence(rule) },
		})
		r.checks = append(r.checks, Check{
			Name:     fmt.Sprintf("mount-isolation:%s", rule.Name),
			Category: CategoryIsolation,
			Run:      func() error { return checkMountIsolation(rule) },
		})
	}
	return r
}

// RunAll executes every registered check and returns their results in
// registration order.
func (r *Runner) RunAll() []CheckResult {
	results := make([]CheckResult, 0, len(r.checks))
	for _, c := range r.checks {
		results = append(results, CheckResult{Check: c, Err: c.Run()})
	}
	return results
}

// HasFailures reports whether any result carries a non-nil error.
func HasFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// PrintResults writes a human-readable pass/fail report to w.
func PrintResults(w io.Writer, results []CheckResult) {
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(w, "✓ [%s] %s\n", r.Check.Category, r.Check.Name)
		} else {
			fmt.Fprintf(w, "✗ [%s] %s: %v\n", r.Check.Category, r.Check.Name, r.Err)
		}
	}
}

// checkImmutableRoot exercises property 5: with BOXXY_IMMUTABLE=1, writes
// outside any rewrite must fail with EROFS; otherwise they must succeed.
func checkImmutableRoot() error {
	immutable := os.Getenv("BOXXY_IMMUTABLE") == "1"
	probe := filepath.Join(string(filepath.Separator), ".boxxy-selfcheck-probe")

	f, err := os.Create(probe)
	if immutable {
		if err == nil {
			f.Close()
			os.Remove(probe)
			return fmt.Errorf("expected EROFS writing to %s under an immutable root, write succeeded", probe)
		}
		if !errors.Is(err, syscall.EROFS) {
			return fmt.Errorf("expected EROFS writing to %s, got: %v", probe, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("expected write to %s to succeed on a non-immutable root: %v", probe, err)
	}
	f.Close()
	return os.Remove(probe)
}

// checkRedirectEquivalence exercises property 1: target and rewrite must
// refer to the same underlying file once the rule's bind mount is active.
func checkRedirectEquivalence(rule MatchedRule) error {
	targetInfo, err := os.Stat(rule.Target)
	if err != nil {
		return fmt.Errorf("stat target %q: %w", rule.Target, err)
	}
	rewriteInfo, err := os.Stat(rule.Rewrite)
	if err != nil {
		return fmt.Errorf("stat rewrite %q: %w", rule.Rewrite, err)
	}
	if !os.SameFile(targetInfo, rewriteInfo) {
		return fmt.Errorf("target %q and rewrite %q do not refer to the same file", rule.Target, rule.Rewrite)
	}
	return nil
}

// checkMountIsolation exercises property 3: target's parent directory and
// target itself should live on different device numbers when a bind mount
// is active, distinguishing it from a plain same-filesystem entry.
func checkMountIsolation(rule MatchedRule) error {
	parentInfo, err := os.Stat(filepath.Dir(rule.Target))
	if err != nil {
		return fmt.Errorf("stat target parent: %w", err)
	}
	targetInfo, err := os.Stat(rule.Target)
	if err != nil {
		return fmt.Errorf("stat target: %w", err)
	}
	parentStat, ok := parentInfo.Sys().(*syscall.Stat_t)
	targetStat, ok2 := targetInfo.Sys().(*syscall.Stat_t)
	if !ok || !ok2 {
		return fmt.Errorf("platform does not expose device numbers via Stat_t")
	}
	if parentStat.Dev == targetStat.Dev {
		return fmt.Errorf("target %q shares a device with its parent directory; expected a separate bind mount", rule.Target)
	}
	return nil
}
