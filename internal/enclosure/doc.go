// Package enclosure builds an isolated filesystem view for a single child
// process: it stages a mirror of the real root, installs bind-mount
// redirects described by a RuleSet, pivots a new user+mount namespace into
// that mirror, and execs the requested program inside it.
package enclosure
