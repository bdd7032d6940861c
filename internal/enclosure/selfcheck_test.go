package enclosure

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckRedirectEquivalence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	rule := MatchedRule{Rule: Rule{Name: "same-file"}, Target: target, Rewrite: target}
	if err := checkRedirectEquivalence(rule); err != nil {
		t.Errorf("expected no error comparing a path to itself, got %v", err)
	}

	other := filepath.Join(dir, "other")
	if err := os.WriteFile(other, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	ruleDistinct := MatchedRule{Rule: Rule{Name: "distinct"}, Target: target, Rewrite: other}
	if err := checkRedirectEquivalence(ruleDistinct); err == nil {
		t.Error("expected an error for two distinct files with equal content")
	}
}

func TestRunnerPrintResults(t *testing.T) {
	t.Parallel()

	results := []CheckResult{
		{Check: Check{Name: "a", Category: CategoryRedirect}, Err: nil},
		{Check: Check{Name: "b", Category: CategoryIsolation}, Err: os.ErrPermission},
	}

	if !HasFailures(results) {
		t.Error("expected HasFailures to report true")
	}

	var buf bytes.Buffer
	PrintResults(&buf, results)
	out := buf.String()
	if !strings.Contains(out, "✓ [redirect] a") {
		t.Errorf("expected pass line for check a, got:\n%s", out)
	}
	if !strings.Contains(out, "✗ [isolation] b") {
		t.Errorf("expected fail line for check b, got:\n%s", out)
	}
}

func TestNewRunnerRegistersPerRuleChecks(t *testing.T) {
	t.Parallel()

	rules := []MatchedRule{
		{Rule: Rule{Name: "r1"}, Target: "/a", Rewrite: "/b"},
		{Rule: Rule{Name: "r2"}, Target: "/c", Rewrite: "/d"},
	}
	runner := NewRunner(rules)
	// 1 immutable check + 2 checks per rule.
	if got, want := len(runner.checks), 1+2*len(rules); got != want {
		t.Errorf("expected %d checks, got %d", want, got)
	}
}
