package enclosure

import (
	"os"
	"path/filepath"
)

// StageRoot creates a fresh, empty staging directory under root (normally
// ContainersRoot) with a human-readable random name, and returns its path.
// Per invariant 4, the directory must exist before the namespace is
// entered so the kernel can bind-mount "/" onto it.
func StageRoot(root string) (string, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return "", &NamespaceError{Step: "create containers root", Err: err}
	}
	for attempt := 0; attempt < 5; attempt++ {
		name, err := StagingName()
		if err != nil {
			return "", &NamespaceError{Step: "generate staging name", Err: err}
		}
		path := filepath.Join(root, name)
		if err := os.Mkdir(path, 0700); err == nil {
			return path, nil
		} else if !os.IsExist(err) {
			return "", &NamespaceError{Step: "create staging directory", Err: err}
		}
	}
	return "", &NamespaceError{Step: "create staging directory", Err: os.ErrExist}
}

// RemoveStage removes an empty staging directory. Best-effort: after
// pivot_root + MNT_DETACH the directory is an empty shell, and leakage is
// non-fatal because normal /tmp cleanup handles it eventually.
func RemoveStage(path string) error {
	return os.Remove(path)
}

// EnsureEndpoint materializes path per mode if it does not already exist:
// an empty directory for ModeDirectory, or an empty regular file (with its
// parent directories) for ModeFile. Pre-existing paths of the matching kind
// are left untouched; a pre-existing path of the wrong kind is a MountError.
func EnsureEndpoint(path string, mode RuleMode) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return checkEndpointKind(path, mode, info)
	case os.IsNotExist(err):
		// fall through to create it
	default:
		return &MountError{Target: path, Err: err}
	}

	switch mode {
	case ModeFile:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return &MountError{Target: path, Err: err}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				return nil
			}
			return &MountError{Target: path, Err: err}
		}
		return f.Close()
	default:
		if err := os.MkdirAll(path, 0755); err != nil {
			return &MountError{Target: path, Err: err}
		}
		return nil
	}
}

func checkEndpointKind(path string, mode RuleMode, info os.FileInfo) error {
	switch mode {
	case ModeFile:
		if info.IsDir() {
			return &MountError{Target: path, Err: os.ErrInvalid}
		}
	default:
		if !info.IsDir() {
			return &MountError{Target: path, Err: os.ErrInvalid}
		}
	}
	return nil
}
