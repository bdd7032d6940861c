package enclosure

import "testing"

func TestSelectFiltersByOnly(t *testing.T) {
	t.Parallel()

	rs := RuleSet{Rules: []Rule{
		{Name: "kube", Target: "/home/user/.kube", Rewrite: "/home/user/.config/kube", Only: []string{"kubectl"}},
	}}

	if got := Select(rs, "/home/user", "/usr/bin/ls", nil); len(got) != 0 {
		t.Errorf("expected ls to be filtered out, got %d matches", len(got))
	}
	if got := Select(rs, "/home/user", "/usr/bin/kubectl", nil); len(got) != 1 {
		t.Errorf("expected kubectl to match, got %d matches", len(got))
	}
}

func TestSelectFiltersByContext(t *testing.T) {
	t.Parallel()

	rs := RuleSet{Rules: []Rule{
		{Name: "proj-a", Target: "/home/user/.env", Rewrite: "/home/user/.config/env-a", Context: []string{"/home/user/Projects/a"}},
	}}

	if got := Select(rs, "/home/user/Projects/b", "/bin/sh", nil); len(got) != 0 {
		t.Errorf("expected no match outside context, got %d", len(got))
	}
	if got := Select(rs, "/home/user/Projects/a/sub", "/bin/sh", nil); len(got) != 1 {
		t.Errorf("expected match inside nested context, got %d", len(got))
	}
}

func TestSelectRejectsSelfNestedRule(t *testing.T) {
	t.Parallel()

	rs := RuleSet{Rules: []Rule{
		{Name: "bad", Target: "/home/user/a", Rewrite: "/home/user/a/b"},
	}}

	if got := Select(rs, "/home/user", "/bin/sh", nil); len(got) != 0 {
		t.Errorf("expected self-nested rule to be rejected, got %d matches", len(got))
	}
}

func TestSelectPreservesOrder(t *testing.T) {
	t.Parallel()

	rs := RuleSet{Rules: []Rule{
		{Name: "first", Target: "/home/user/x", Rewrite: "/home/user/rw1"},
		{Name: "second", Target: "/home/user/x", Rewrite: "/home/user/rw2"},
	}}

	got := Select(rs, "/home/user", "/bin/sh", nil)
	if len(got) != 2 || got[0].Name != "first" || got[1].Name != "second" {
		t.Errorf("expected order [first second], got %v", got)
	}
}
