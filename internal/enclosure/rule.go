package enclosure

import (
	"fmt"
	"strings"
)

// RuleMode selects how a rule's endpoints are materialized and what kind of
// bind mount is installed for them.
type RuleMode string

const (
	ModeDirectory RuleMode = "directory"
	ModeFile      RuleMode = "file"
)

// Rule is a single redirection directive: when the box's program touches
// Target, it silently observes Rewrite instead.
type Rule struct {
	Name    string            `yaml:"name"`
	Target  string            `yaml:"target"`
	Rewrite string            `yaml:"rewrite"`
	Mode    RuleMode          `yaml:"mode"`
	Context []string          `yaml:"context"`
	Only    []string          `yaml:"only"`
	Env     map[string]string `yaml:"env"`
}

// RuleSet is an ordered sequence of rules. Order is preserved for
// deterministic mount layering: when two selected rules share a
// canonicalized target, the later one wins.
type RuleSet struct {
	Rules []Rule
	// Source labels which file each rule came from, for diagnostics only.
	Source []string
}

// normalizedMode returns r.Mode, defaulting to ModeDirectory per the data
// model's declared default.
func (r Rule) normalizedMode() RuleMode {
	if r.Mode == "" {
		return ModeDirectory
	}
	return r.Mode
}

// validate checks a rule against already canonicalized target/rewrite
// paths: both must be non-empty, neither may be a strict ancestor of the
// other, and the mode must be known. It does not touch the filesystem, so
// whether the endpoints are files or directories is checked later, by
// EnsureEndpoint.
func (r Rule) validate(target, rewrite string) error {
	if target == "" || rewrite == "" {
		return &ConfigError{Rule: r.Name, Reason: "target and rewrite must both canonicalize to non-empty paths"}
	}
	if isStrictAncestor(rewrite, target) {
		return &ConfigError{Rule: r.Name, Reason: fmt.Sprintf("rewrite %q is an ancestor of target %q", rewrite, target)}
	}
	if isStrictAncestor(target, rewrite) {
		return &ConfigError{Rule: r.Name, Reason: fmt.Sprintf("target %q is an ancestor of rewrite %q", target, rewrite)}
	}
	switch r.normalizedMode() {
	case ModeDirectory, ModeFile:
	default:
		return &ConfigError{Rule: r.Name, Reason: fmt.Sprintf("unknown mode %q", r.Mode)}
	}
	return nil
}

// isStrictAncestor reports whether ancestor is a strict, component-boundary
// ancestor of descendant. Equal paths are not considered ancestors.
func isStrictAncestor(ancestor, descendant string) bool {
	if ancestor == descendant {
		return false
	}
	ancestor = strings.TrimRight(ancestor, "/")
	if ancestor == "" {
		ancestor = "/"
	}
	prefix := ancestor
	if prefix != "/" {
		prefix += "/"
	}
	return strings.HasPrefix(descendant, prefix)
}
