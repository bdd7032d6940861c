package enclosure

import (
	"os"
	"strings"
)

// Capabilities summarizes whether the current environment can run an
// enclosure at all, distinct from Validator's per-invocation checks: this
// is the cheap, early "can we even try" gate.
type Capabilities struct {
	UserNamespaces bool
	Reason         string
}

// DetectCapabilities inspects the running kernel for user namespace
// support. It does not attempt a trial clone(2); Validator.ValidateAll is
// the place for anything more invasive.
func DetectCapabilities() Capabilities {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		return Capabilities{UserNamespaces: true}
	}
	if strings.TrimSpace(string(data)) == "0" {
		return Capabilities{
			UserNamespaces: false,
			Reason:         "kernel.unprivileged_userns_clone=0: ask an administrator to enable unprivileged user namespaces",
		}
	}
	return Capabilities{UserNamespaces: true}
}

// CanRunSandbox reports whether the current environment supports entering
// an enclosure.
func (c Capabilities) CanRunSandbox() bool {
	return c.UserNamespaces
}

// SkipReason explains why CanRunSandbox is false, or "" if it is true.
func (c Capabilities) SkipReason() string {
	if c.CanRunSandbox() {
		return ""
	}
	return c.Reason
}
