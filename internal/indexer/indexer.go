// Package indexer turns local files and folders into an outgoing transfer.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trebleshot/pkg/types"

	"github.com/google/uuid"
)

// DefaultMimeType is used when the extension tells nothing
const DefaultMimeType = "application/octet-stream"

var ErrNothingToSend = errors.New("no files to send")

// Index walks paths and returns a new transfer with one outgoing item per
// regular file. A selected folder keeps its name as the first segment of the
// virtual directory of everything below it. Hidden entries inside folders
// are skipped; explicitly selected files are always included.
func Index(ctx context.Context, paths []string) (types.Transfer, []types.TransferItem, error) {
	now := time.Now()
	transfer := types.Transfer{ID: uuid.NewString(), Created: now}

	var items []types.TransferItem
	seen := make(map[string]bool)
	add := func(path, directory string, size int64) {
		if seen[path] {
			return
		}
		seen[path] = true
		items = append(items, types.TransferItem{
			ID:         int64(len(items) + 1),
			TransferID: transfer.ID,
			Name:       filepath.Base(path),
			MimeType:   DetectMimeType(path),
			Directory:  directory,
			Size:       size,
			Type:       types.Outgoing,
			File:       path,
			LastChange: now,
			Flags:      types.NewFlagSet(nil),
		})
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return types.Transfer{}, nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return types.Transfer{}, nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return types.Transfer{}, nil, fmt.Errorf("%s is not a regular file", p)
			}
			add(abs, "", info.Size())
			continue
		}

		parent := filepath.Dir(abs)
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path != abs && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(parent, filepath.Dir(path))
			if err != nil {
				return err
			}
			add(path, types.CleanDirectory(filepath.ToSlash(rel)), fi.Size())
			return nil
		})
		if err != nil {
			return types.Transfer{}, nil, fmt.Errorf("failed to index %s: %w", p, err)
		}
	}

	if len(items) == 0 {
		return types.Transfer{}, nil, ErrNothingToSend
	}
	return transfer, items, nil
}

// DetectMimeType guesses the MIME type of a file from its extension
func DetectMimeType(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return DefaultMimeType
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
