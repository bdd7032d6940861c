package enclosure

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ContainersRoot is the fixed parent directory under which every staging
// directory is created, matching invariant 4 of the data model.
const ContainersRoot = "/tmp/boxxy-containers"

// adjectives and nouns used to build human-readable staging names, e.g.
// "bold-surf-9356". Kept deliberately small; collisions are guarded by the
// trailing random 4-digit suffix and by retrying on EEXIST.
var adjectives = []string{
	"bold", "calm", "dark", "eager", "fuzzy", "glad", "hollow", "icy",
	"jolly", "keen", "lively", "misty", "noble", "odd", "proud", "quiet",
	"rapid", "silent", "tidy", "vivid",
}

var nouns = []string{
	"surf", "ridge", "ember", "falcon", "grove", "harbor", "inlet", "jetty",
	"kestrel", "lagoon", "meadow", "nebula", "orbit", "plateau", "quarry",
	"spire", "summit", "tundra", "valley", "willow",
}

// StagingName returns a fresh "<adjective>-<noun>-<digits>" name, suitable
// for joining onto ContainersRoot.
func StagingName() (string, error) {
	adj, err := randomChoice(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomChoice(nouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", adj, noun, n.Int64()), nil
}

func randomChoice(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[n.Int64()], nil
}
