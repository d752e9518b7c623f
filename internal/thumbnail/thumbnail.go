// Package thumbnail decides which transfer items can show a preview and
// locates the file the preview is read from.
package thumbnail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trebleshot/pkg/types"
)

// Resolver finds the preview source of an item
type Resolver interface {
	Resolve(item types.TransferItem, transfer types.Transfer, savePath string) (doc string, ok bool, err error)
}

// Supports reports whether items of this MIME type can have a thumbnail
func Supports(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}

// FileResolver reads previews straight from the local file of an item
type FileResolver struct{}

// NewFileResolver creates a resolver backed by the local filesystem
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

// Resolve returns the file a preview can be generated from. Outgoing items
// use their source file; incoming items only once they are fully received.
func (r *FileResolver) Resolve(item types.TransferItem, transfer types.Transfer, savePath string) (string, bool, error) {
	if !Supports(item.MimeType) || item.File == "" {
		return "", false, nil
	}

	var doc string
	switch item.Type {
	case types.Outgoing:
		doc = item.File
	case types.Incoming:
		if item.Flag().State != types.Done {
			return "", false, nil
		}
		doc = item.File
		if !filepath.IsAbs(doc) {
			doc = filepath.Join(savePath, filepath.FromSlash(doc))
		}
	default:
		return "", false, nil
	}

	info, err := os.Stat(doc)
	if err != nil {
		return "", false, fmt.Errorf("thumbnail source for item %d: %w", item.ID, err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("thumbnail source for item %d is a directory", item.ID)
	}
	return doc, true, nil
}
