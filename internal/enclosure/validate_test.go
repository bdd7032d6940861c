package enclosure

import (
	"bytes"
	"strings"
	"testing"
)

func TestValidatorProgramNotFound(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	v.ValidateProgram("definitely-not-a-real-binary-xyz")
	if !v.HasErrors() {
		t.Error("expected a failure for a nonexistent program")
	}
}

func TestValidatorProgramFound(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	v.ValidateProgram("sh")
	if v.HasErrors() {
		t.Errorf("did not expect a failure for sh, got %v", v.failures)
	}
}

func TestValidatorPrintResults(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	v.pass("ok thing")
	v.warn("meh thing")
	v.fail("bad thing")

	var buf bytes.Buffer
	v.PrintResults(&buf)
	out := buf.String()

	for _, want := range []string{"✓ ok thing", "⚠ meh thing", "✗ bad thing"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestValidatorRulesWarnsWhenNoneApply(t *testing.T) {
	t.Parallel()

	rs := RuleSet{Rules: []Rule{
		{Name: "kube", Target: "/home/user/.kube", Rewrite: "/home/user/.config/kube", Only: []string{"kubectl"}},
	}}

	v := NewValidator()
	v.ValidateRules(rs, "/home/user", "/bin/ls")
	if len(v.warnings) == 0 {
		t.Error("expected a warning when no rules apply")
	}
}
