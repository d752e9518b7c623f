package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveDestinationDir validates a directory that received items will be
// written under. A missing directory is accepted when its parent exists.
func ResolveDestinationDir(destPath string) (string, error) {
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return "", fmt.Errorf("cannot resolve destination path: %w", err)
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if !info.IsDir() {
			return "", fmt.Errorf("destination path '%s' exists but is not a directory", abs)
		}
		return abs, nil
	case os.IsNotExist(err):
		dir := filepath.Dir(abs)
		if parent, dirErr := os.Stat(dir); dirErr == nil && parent.IsDir() {
			return abs, nil
		}
		return "", fmt.Errorf("parent directory does not exist: %s", dir)
	default:
		return "", fmt.Errorf("cannot access destination path: %w", err)
	}
}

// FormatFileSize formats file size in human readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < 0 {
		return "-"
	}
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
