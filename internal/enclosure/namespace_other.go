//go:build !linux

package enclosure

import (
	"errors"
	"os/exec"
)

// ErrUnsupportedPlatform is returned by Enter on any non-Linux platform:
// user namespaces, pivot_root, and bind mounts as specified are Linux-only.
var ErrUnsupportedPlatform = errors.New("boxxy: enclosures require Linux user namespaces")

// Enter is unavailable outside Linux; see namespace_linux.go.
func Enter(stagingPath string, rules []MatchedRule, immutable bool, program string, argv, env []string, workingDir, logLevel string) (*exec.Cmd, error) {
	return nil, &NamespaceError{Step: "platform check", Err: ErrUnsupportedPlatform}
}
