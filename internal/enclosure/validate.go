package enclosure

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Validator runs pre-flight checks against the current environment without
// entering any namespace. Its only write is the probe file that
// ValidateTmpWritable creates and removes again. Modeled on the same
// pass/warn/fail accumulation used elsewhere in the pack for diagnostic
// tooling.
type Validator struct {
	passes   []string
	warnings []string
	failures []string
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) pass(msg string, args ...any) {
	v.passes = append(v.passes, fmt.Sprintf(msg, args...))
}

func (v *Validator) warn(msg string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(msg, args...))
}

func (v *Validator) fail(msg string, args ...any) {
	v.failures = append(v.failures, fmt.Sprintf(msg, args...))
}

// HasErrors reports whether any check failed outright.
func (v *Validator) HasErrors() bool {
	return len(v.failures) > 0
}

// ValidateAll runs every check relevant to running program with rs from
// cwd: user namespace availability, /tmp writability, program resolution,
// and per-rule rewrite-parent creatability.
func (v *Validator) ValidateAll(rs RuleSet, cwd, program string) {
	v.ValidateUserNamespaces()
	v.ValidateTmpWritable()
	v.ValidateProgram(program)
	v.ValidateRules(rs, cwd, program)
}

// ValidateUserNamespaces checks that unprivileged user namespace creation
// is permitted by the running kernel, which CLONE_NEWUSER requires.
func (v *Validator) ValidateUserNamespaces() {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		// Absence of the sysctl usually means the kernel doesn't gate this
		// at all (it's a distro-specific knob, not universal).
		v.pass("unprivileged user namespaces: sysctl absent, assuming enabled")
		return
	}
	if strings.TrimSpace(string(data)) == "0" {
		v.fail("unprivileged user namespaces are disabled (kernel.unprivileged_userns_clone=0)")
		return
	}
	v.pass("unprivileged user namespaces enabled")
}

// ValidateTmpWritable checks that ContainersRoot's parent is writable, since
// the Mirror Root Builder must create a staging directory there.
func (v *Validator) ValidateTmpWritable() {
	parent := filepath.Dir(ContainersRoot)
	info, err := os.Stat(parent)
	if err != nil {
		v.fail("%s does not exist or is not accessible: %v", parent, err)
		return
	}
	if !info.IsDir() {
		v.fail("%s is not a directory", parent)
		return
	}
	probe := filepath.Join(parent, ".boxxy-write-probe")
	if f, err := os.Create(probe); err != nil {
		v.fail("%s is not writable: %v", parent, err)
	} else {
		f.Close()
		os.Remove(probe)
		v.pass("%s is writable", parent)
	}
}

// ValidateProgram checks that program resolves to an executable.
func (v *Validator) ValidateProgram(program string) {
	if program == "" {
		v.fail("no program given")
		return
	}
	if _, err := exec.LookPath(program); err != nil {
		v.fail("program %q not found: %v", program, err)
		return
	}
	v.pass("program %q resolved", program)
}

// ValidateRules checks that every rule selected for (cwd, program) has a
// rewrite whose parent directory either does not exist yet or can be
// stat'ed. Writability of the parent, and whether a missing parent can be
// created, are not probed.
func (v *Validator) ValidateRules(rs RuleSet, cwd, program string) {
	matched := Select(rs, cwd, program, nil)
	if len(matched) == 0 {
		v.warn("no rules apply to %q from %q", program, cwd)
		return
	}
	for _, m := range matched {
		parent := filepath.Dir(m.Rewrite)
		if _, err := os.Stat(parent); err != nil && !os.IsNotExist(err) {
			v.fail("rule %q: rewrite parent %q is not accessible: %v", m.Name, parent, err)
			continue
		}
		v.pass("rule %q: target %q -> rewrite %q", m.Name, m.Target, m.Rewrite)
	}
}

// PrintResults writes a human-readable pass/warn/fail report to w.
func (v *Validator) PrintResults(w io.Writer) {
	for _, p := range v.passes {
		fmt.Fprintf(w, "✓ %s\n", p)
	}
	for _, warning := range v.warnings {
		fmt.Fprintf(w, "⚠ %s\n", warning)
	}
	for _, f := range v.failures {
		fmt.Fprintf(w, "✗ %s\n", f)
	}
}
