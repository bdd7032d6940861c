package enclosure

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// MatchedRule is a Rule after canonicalization, ready for the Mirror Root
// Builder and Rule Applier to act on.
type MatchedRule struct {
	Rule
	Target  string
	Rewrite string
}

// Select filters rs to the rules that apply to program when invoked from
// cwd, canonicalizing each selected rule's endpoints and dropping any that
// violate an invariant. Input order is preserved; later rules that share a
// canonicalized target override earlier ones only in effect (at mount
// install time), not by being removed here.
func Select(rs RuleSet, cwd, program string, logger *slog.Logger) []MatchedRule {
	if logger == nil {
		logger = slog.Default()
	}

	base := filepath.Base(program)
	var out []MatchedRule

	for _, rule := range rs.Rules {
		if len(rule.Only) > 0 && !containsBasename(rule.Only, base) {
			logger.Debug("rule skipped: program not in only-list", "rule", rule.Name, "program", base)
			continue
		}
		if len(rule.Context) > 0 && !inAnyContext(rule.Context, cwd, logger) {
			logger.Debug("rule skipped: cwd not in context", "rule", rule.Name, "cwd", cwd)
			continue
		}

		target, err := Canonicalize(rule.Target, cwd)
		if err != nil {
			logger.Warn("rule skipped: target canonicalization failed", "rule", rule.Name, "error", err)
			continue
		}
		rewrite, err := Canonicalize(rule.Rewrite, cwd)
		if err != nil {
			logger.Warn("rule skipped: rewrite canonicalization failed", "rule", rule.Name, "error", err)
			continue
		}

		if err := rule.validate(target, rewrite); err != nil {
			logger.Warn("rule skipped: invariant violation", "rule", rule.Name, "error", err)
			continue
		}

		out = append(out, MatchedRule{Rule: rule, Target: target, Rewrite: rewrite})
	}
	return out
}

func containsBasename(names []string, base string) bool {
	for _, n := range names {
		if filepath.Base(n) == base {
			return true
		}
	}
	return false
}

// inAnyContext reports whether cwd is equal to, or nested under, one of the
// given context directories, at a path-component boundary. Context entries
// are canonicalized (tilde/env expansion) before comparison.
func inAnyContext(contexts []string, cwd string, logger *slog.Logger) bool {
	for _, raw := range contexts {
		c, err := Canonicalize(raw, cwd)
		if err != nil {
			logger.Debug("context entry skipped: canonicalization failed", "context", raw, "error", err)
			continue
		}
		c = strings.TrimRight(c, "/")
		if c == "" {
			c = "/"
		}
		if cwd == c {
			return true
		}
		prefix := c
		if prefix != "/" {
			prefix += "/"
		}
		if strings.HasPrefix(cwd, prefix) {
			return true
		}
	}
	return false
}
