package enclosure

import (
	"regexp"
	"testing"
)

var stagingNamePattern = regexp.MustCompile(`^[a-z0-9]+-[a-z0-9]+-\d{4}$`)

func TestStagingNameFormat(t *testing.T) {
	t.Parallel()

	name, err := StagingName()
	if err != nil {
		t.Fatalf("StagingName() error = %v", err)
	}
	if !stagingNamePattern.MatchString(name) {
		t.Errorf("StagingName() = %q, want pattern %s", name, stagingNamePattern)
	}
}

func TestStagingNameDistinctAcrossCalls(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name, err := StagingName()
		if err != nil {
			t.Fatalf("StagingName() error = %v", err)
		}
		seen[name] = true
	}
	// Not a strict uniqueness guarantee (names are probabilistic), but 50
	// draws from a space of 20*20*10000 should essentially never collide.
	if len(seen) < 45 {
		t.Errorf("expected near-unique names across 50 draws, got %d distinct", len(seen))
	}
}
