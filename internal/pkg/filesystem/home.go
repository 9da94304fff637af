// Package filesystem resolves user-facing paths such as ~/.notegen.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UserHomeDir returns the current user's home directory, or "." when it
// cannot be determined.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// ExpandPath resolves a leading ~ against the home directory and cleans
// everything else. Absolute paths are returned unchanged.
func ExpandPath(path string) string {
	switch {
	case filepath.IsAbs(path):
		return path
	case path == "~":
		return UserHomeDir()
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(UserHomeDir(), path[2:])
	default:
		return filepath.Clean(path)
	}
}

// EnsureDir creates dir and any missing parents. An existing non-directory
// at dir is an error.
func EnsureDir(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
