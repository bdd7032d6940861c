package enclosure

import (
	"os"
	"path/filepath"
	"strings"
)

// maxSymlinkDepth bounds symlink resolution, mirroring the original
// enclosure implementation's own depth limit on pathological link chains.
const maxSymlinkDepth = 10

// Canonicalize expands a leading "~", expands $VAR/${VAR} references against
// the current environment, resolves "." and ".." lexically, and resolves
// symlinks along the longest existing prefix of p. Relative paths are
// resolved against cwd (captured once by the caller, before namespaces are
// entered, so it reflects the invoker's view of the filesystem).
//
// Missing paths are not an error here: canonicalization operates purely on
// the longest existing prefix and appends whatever trailing, not-yet-real
// segments remain. Materializing those segments is the Rule Applier's job.
func Canonicalize(p, cwd string) (string, error) {
	if p == "" {
		return "", &PathError{Path: p, Reason: "empty path"}
	}
	if strings.ContainsRune(p, 0) {
		return "", &PathError{Path: p, Reason: "contains NUL byte"}
	}

	expanded := os.Expand(expandHome(p), os.Getenv)
	if expanded == "" {
		return "", &PathError{Path: p, Reason: "expands to empty path"}
	}

	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(cwd, expanded)
	}
	expanded = filepath.Clean(expanded)

	resolved, err := resolveExistingPrefix(expanded)
	if err != nil {
		return "", &PathError{Path: p, Reason: err.Error()}
	}
	return resolved, nil
}

// expandHome replaces a leading "~" or "~/..." with the invoking user's home
// directory. A bare "~otheruser" form is left untouched, matching the
// original implementation's scope (only the invoking user's own home is
// ever relevant to a rule).
func expandHome(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// resolveExistingPrefix walks p from the root, resolving symlinks for every
// path component that already exists, and lexically appends any trailing
// components that do not. The result is absolute, free of "." and "..", and
// has every existing prefix symlink-resolved.
func resolveExistingPrefix(p string) (string, error) {
	volume := filepath.VolumeName(p)
	parts := strings.Split(strings.TrimPrefix(p[len(volume):], string(filepath.Separator)), string(filepath.Separator))

	current := volume + string(filepath.Separator)
	existing := true
	for i, part := range parts {
		if part == "" {
			continue
		}
		candidate := filepath.Join(current, part)
		if !existing {
			current = candidate
			continue
		}

		resolved, err := resolveSymlink(candidate, 0)
		if err != nil {
			return "", err
		}
		if _, statErr := os.Lstat(resolved); statErr != nil {
			existing = false
			current = resolved
			continue
		}
		current = resolved

		if i == len(parts)-1 {
			break
		}
	}
	return filepath.Clean(current), nil
}

// resolveSymlink follows p if it is itself a symlink, recursively, up to
// maxSymlinkDepth. Non-symlinks and non-existent paths are returned as-is.
func resolveSymlink(p string, depth int) (string, error) {
	if depth > maxSymlinkDepth {
		return "", &PathError{Path: p, Reason: "too many levels of symbolic links"}
	}
	info, err := os.Lstat(p)
	if err != nil {
		return p, nil
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return p, nil
	}
	target, err := os.Readlink(p)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(p), target)
	}
	target = filepath.Clean(target)
	if dir, err := filepath.EvalSymlinks(filepath.Dir(target)); err == nil {
		target = filepath.Join(dir, filepath.Base(target))
	}
	return resolveSymlink(target, depth+1)
}
