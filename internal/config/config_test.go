package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergesUserAndProjectConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	userConfig := filepath.Join(home, ".config", "boxxy", "boxxy.yaml")
	writeFile(t, userConfig, `
rules:
  - name: aws
    target: ~/.aws
    rewrite: ~/.config/aws
    mode: directory
  - name: tmux
    target: ~/.tmux.conf
    rewrite: ~/.config/tmux/tmux.conf
    mode: file
`)

	project := t.TempDir()
	writeFile(t, ProjectConfigPath(project), `
rules:
  - name: aws-override
    target: ~/.aws
    rewrite: ~/work/aws
    mode: directory
`)

	rs, err := Load(project)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rs.Rules) != 2 {
		t.Fatalf("expected 2 merged rules, got %d: %+v", len(rs.Rules), rs.Rules)
	}

	for _, r := range rs.Rules {
		if r.Target == "~/.aws" && (r.Name != "aws-override" || r.Rewrite != "~/work/aws") {
			t.Errorf("expected project rule to override user rule, got %+v", r)
		}
	}
}

func TestLoadMissingFilesIsNotAnError(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	rs, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rs.Rules) != 0 {
		t.Errorf("expected no rules, got %d", len(rs.Rules))
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	writeFile(t, filepath.Join(home, ".config", "boxxy", "boxxy.yaml"), "rules: [not valid")

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
