// Package diskspace resolves where incoming items are saved and reports the
// free and total space of that storage.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"trebleshot/pkg/types"
)

// Unknown is reported for free or total space that could not be determined
const Unknown int64 = -1

// Handle refers to the storage location of a transfer's incoming items
type Handle struct {
	Path string
}

// Provider resolves save paths and queries their storage
type Provider interface {
	ResolveSavePath(transfer types.Transfer) Handle
	Space(h Handle) (free, total int64, err error)
}

// LocalProvider uses the local filesystem, falling back to DownloadDir when a
// transfer has no save path of its own.
type LocalProvider struct {
	DownloadDir string
}

// NewLocalProvider creates a provider for the given default download directory
func NewLocalProvider(downloadDir string) *LocalProvider {
	return &LocalProvider{DownloadDir: downloadDir}
}

func (p *LocalProvider) ResolveSavePath(transfer types.Transfer) Handle {
	if transfer.SavePath != "" {
		return Handle{Path: transfer.SavePath}
	}
	return Handle{Path: p.DownloadDir}
}

// Space reports the filesystem holding h. The directory may not exist yet, in
// which case its nearest existing ancestor is measured.
func (p *LocalProvider) Space(h Handle) (free, total int64, err error) {
	if h.Path == "" {
		return Unknown, Unknown, errors.New("save path is empty")
	}
	dir, err := existingAncestor(h.Path)
	if err != nil {
		return Unknown, Unknown, err
	}
	free, total, err = statfs(dir)
	if err != nil {
		return Unknown, Unknown, fmt.Errorf("failed to stat filesystem of %s: %w", dir, err)
	}
	return free, total, nil
}

func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		abs = parent
	}
}

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// CheckAvailableSpace checks that the storage behind targetPath can hold
// requiredBytes times safetyMargin. When the space cannot be determined the
// check passes and the write is left to fail on its own.
func CheckAvailableSpace(p Provider, targetPath string, requiredBytes int64, safetyMargin float64) error {
	free, _, err := p.Space(Handle{Path: targetPath})
	if err != nil || free == Unknown {
		return nil
	}

	requiredWithMargin := int64(float64(requiredBytes) * safetyMargin)
	if free < requiredWithMargin {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  requiredWithMargin,
			AvailableBytes: free,
		}
	}
	return nil
}

// IsInsufficientSpaceError checks if an error is an InsufficientSpaceError
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
