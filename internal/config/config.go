// Package config loads boxxy's RuleSet from YAML files on disk: the user's
// config plus an optional project-local override, merged with later-wins
// semantics on identical targets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/queer/boxxy/internal/enclosure"
)

// fileSchema is the on-disk shape of a boxxy.yaml file: a flat list of
// rules under a "rules" key, corresponding 1:1 to enclosure.Rule.
type fileSchema struct {
	Rules []enclosure.Rule `yaml:"rules"`
}

// UserConfigPath returns ~/.config/boxxy/boxxy.yaml, honoring XDG_CONFIG_HOME
// when set.
func UserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "boxxy", "boxxy.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "boxxy", "boxxy.yaml"), nil
}

// ProjectConfigPath returns "boxxy.yaml" inside workingDirectory.
func ProjectConfigPath(workingDirectory string) string {
	return filepath.Join(workingDirectory, "boxxy.yaml")
}

// Load reads the user config and, if present, a project-local boxxy.yaml in
// workingDirectory, and merges them with later-wins semantics on matching
// (target, mode) pairs. A missing optional file is not an error; malformed
// YAML is.
func Load(workingDirectory string) (enclosure.RuleSet, error) {
	var merged enclosure.RuleSet

	userPath, err := UserConfigPath()
	if err != nil {
		return merged, err
	}

	for _, path := range []string{userPath, ProjectConfigPath(workingDirectory)} {
		rules, err := loadFile(path)
		if err != nil {
			return merged, err
		}
		if rules == nil {
			continue
		}
		merged = mergeRules(merged, rules, path)
	}

	return merged, nil
}

// loadFile reads and parses a single boxxy.yaml file. It returns (nil, nil)
// if the file does not exist.
func loadFile(path string) ([]enclosure.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &enclosure.ConfigError{Rule: path, Reason: err.Error()}
	}

	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, &enclosure.ConfigError{Rule: path, Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return schema.Rules, nil
}

// MarshalRuleSet renders rs back into the on-disk YAML schema, for `boxxy
// config`'s diagnostic dump.
func MarshalRuleSet(rs enclosure.RuleSet) ([]byte, error) {
	return yaml.Marshal(fileSchema{Rules: rs.Rules})
}

// mergeRules appends incoming rules onto base, with later entries
// overriding an earlier rule that shares the same (target, mode) pair
// rather than stacking a duplicate. This is deliberately a pre-
// canonicalization proxy match (spec's later-wins guarantee is enforced
// definitively at mount-install time in the Namespace Sandbox); it exists
// here only so `boxxy config` prints a RuleSet free of raw duplicates.
func mergeRules(base enclosure.RuleSet, incoming []enclosure.Rule, source string) enclosure.RuleSet {
	for _, rule := range incoming {
		replaced := false
		for i, existing := range base.Rules {
			if existing.Target == rule.Target && sameMode(existing, rule) {
				base.Rules[i] = rule
				base.Source[i] = source
				replaced = true
				break
			}
		}
		if !replaced {
			base.Rules = append(base.Rules, rule)
			base.Source = append(base.Source, source)
		}
	}
	return base
}

// sameMode compares two rules' modes, substituting the declared default
// (directory) for an unset Mode so "" and "directory" are treated as equal.
func sameMode(a, b enclosure.Rule) bool {
	normalize := func(m enclosure.RuleMode) enclosure.RuleMode {
		if m == "" {
			return enclosure.ModeDirectory
		}
		return m
	}
	return normalize(a.Mode) == normalize(b.Mode)
}
