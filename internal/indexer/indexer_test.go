package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"trebleshot/pkg/types"
)

func touch(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexLayout(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "single.txt"), 3)
	touch(t, filepath.Join(root, "photos", "a.jpg"), 10)
	touch(t, filepath.Join(root, "photos", "2024", "b.png"), 20)
	touch(t, filepath.Join(root, "photos", ".thumbs", "c.jpg"), 5)
	touch(t, filepath.Join(root, "photos", ".DS_Store"), 1)

	transfer, items, err := Index(context.Background(), []string{
		filepath.Join(root, "single.txt"),
		filepath.Join(root, "photos"),
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if transfer.ID == "" {
		t.Error("transfer has no id")
	}

	want := map[string]struct {
		dir  string
		size int64
	}{
		"single.txt": {"", 3},
		"a.jpg":      {"photos", 10},
		"b.png":      {"photos/2024", 20},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d: %+v", len(items), len(want), items)
	}

	for i, item := range items {
		if item.ID != int64(i+1) {
			t.Errorf("item %s id = %d, want %d", item.Name, item.ID, i+1)
		}
		w, ok := want[item.Name]
		if !ok {
			t.Errorf("unexpected item %s", item.Name)
			continue
		}
		if item.Directory != w.dir {
			t.Errorf("%s directory = %q, want %q", item.Name, item.Directory, w.dir)
		}
		if item.Size != w.size {
			t.Errorf("%s size = %d, want %d", item.Name, item.Size, w.size)
		}
		if item.Type != types.Outgoing || item.TransferID != transfer.ID || item.Flags == nil {
			t.Errorf("%s not an outgoing item of the transfer: %+v", item.Name, item)
		}
		if !filepath.IsAbs(item.File) {
			t.Errorf("%s source %q is not absolute", item.Name, item.File)
		}
	}
}

func TestIndexDeduplicates(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	touch(t, file, 1)

	_, items, err := Index(context.Background(), []string{file, file})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1", len(items))
	}
}

func TestIndexErrors(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "empty")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Index(context.Background(), []string{empty}); !errors.Is(err, ErrNothingToSend) {
		t.Errorf("empty folder err = %v, want ErrNothingToSend", err)
	}
	if _, _, err := Index(context.Background(), []string{filepath.Join(root, "missing")}); err == nil {
		t.Error("expected error for a missing path")
	}
}

func TestIndexCancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "dir", "a.txt"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Index(ctx, []string{filepath.Join(root, "dir")}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"photo.JPG", "image/jpeg"},
		{"clip.png", "image/png"},
		{"page.html", "text/html"},
		{"noextension", DefaultMimeType},
		{"data.unknownext", DefaultMimeType},
	}
	for _, tt := range tests {
		if got := DetectMimeType(tt.path); got != tt.want {
			t.Errorf("DetectMimeType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
