package processor

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"trebleshot/pkg/types"
)

// fileWriter wraps the destination file of an incoming item
type fileWriter struct {
	file              *os.File
	destPath          string
	storedName        string // Slash separated, relative to the save directory
	totalBytesWritten uint64
}

// createWriter creates saveDir/<directory>/<name>, picking "name (n).ext"
// when the file already exists so earlier transfers are never overwritten.
func createWriter(saveDir string, meta types.ItemMetadata) (*fileWriter, error) {
	name := filepath.Base(filepath.FromSlash(strings.ReplaceAll(meta.Name, "\\", "/")))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil, fmt.Errorf("invalid item name %q", meta.Name)
	}
	dir := types.CleanDirectory(meta.Directory)

	destDir := filepath.Join(saveDir, filepath.FromSlash(dir))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		file, err := os.OpenFile(filepath.Join(destDir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return &fileWriter{
				file:       file,
				destPath:   file.Name(),
				storedName: path.Join(dir, candidate),
			}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create file: %w", err)
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
}

func (fw *fileWriter) write(data []byte) error {
	n, err := fw.file.Write(data)
	fw.totalBytesWritten += uint64(n)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

func (fw *fileWriter) close() error {
	return fw.file.Close()
}
