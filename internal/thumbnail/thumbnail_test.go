package thumbnail

import (
	"os"
	"path/filepath"
	"testing"

	"trebleshot/pkg/types"
)

func TestSupports(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/png", true},
		{"video/mp4", true},
		{"audio/mpeg", false},
		{"application/pdf", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := Supports(tt.mime); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.jpg")
	if err := os.WriteFile(source, []byte("jpg"), 0644); err != nil {
		t.Fatal(err)
	}
	saveDir := filepath.Join(dir, "save")
	if err := os.MkdirAll(filepath.Join(saveDir, "photos"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(saveDir, "photos", "got.jpg"), []byte("jpg"), 0644); err != nil {
		t.Fatal(err)
	}

	transfer := types.Transfer{ID: "t"}
	r := NewFileResolver()

	tests := []struct {
		name    string
		item    types.TransferItem
		wantOK  bool
		wantErr bool
	}{
		{
			name:   "outgoing image",
			item:   types.TransferItem{ID: 1, MimeType: "image/jpeg", Type: types.Outgoing, File: source},
			wantOK: true,
		},
		{
			name: "no mime type",
			item: types.TransferItem{ID: 2, Type: types.Outgoing, File: source},
		},
		{
			name: "unsupported mime type",
			item: types.TransferItem{ID: 3, MimeType: "text/plain", Type: types.Outgoing, File: source},
		},
		{
			name:    "outgoing missing file",
			item:    types.TransferItem{ID: 4, MimeType: "image/jpeg", Type: types.Outgoing, File: filepath.Join(dir, "gone.jpg")},
			wantErr: true,
		},
		{
			name: "incoming not done",
			item: types.TransferItem{ID: 5, MimeType: "image/jpeg", Type: types.Incoming, File: "photos/got.jpg",
				Flags: types.NewFlagSet(map[string]types.Flag{types.IncomingKey: types.FlagInProgress(1)})},
		},
		{
			name: "incoming done",
			item: types.TransferItem{ID: 6, MimeType: "image/jpeg", Type: types.Incoming, File: "photos/got.jpg",
				Flags: types.NewFlagSet(map[string]types.Flag{types.IncomingKey: types.FlagDone})},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, ok, err := r.Resolve(tt.item, transfer, saveDir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("Resolve() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && doc == "" {
				t.Error("expected a document path")
			}
		})
	}
}
