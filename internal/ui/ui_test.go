package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"trebleshot/internal/reporter"
	"trebleshot/internal/tree"
	"trebleshot/pkg/types"
)

func TestInputCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"valid", "ABCD1234\n", "ABCD1234", nil},
		{"trims spaces", "  abcd1234  \n", "abcd1234", nil},
		{"retries invalid", "short\nABCD-123\nZZZZ9999\n", "ZZZZ9999", nil},
		{"input ends", "nope\n", "", io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			got, err := p.InputCode(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInputCodeCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewPrompter(r, io.Discard).InputCode(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func sampleNodes() []tree.Node {
	flags := types.NewFlagSet(map[string]types.Flag{types.IncomingKey: types.FlagDone})
	failed := types.NewFlagSet(map[string]types.Flag{types.IncomingKey: types.FlagInterrupted})
	items := []types.TransferItem{
		{ID: 1, TransferID: "t", Name: "photo.jpg", MimeType: "image/jpeg", Size: 2048, Type: types.Incoming, Flags: flags},
		{ID: 2, TransferID: "t", Name: "notes.txt", MimeType: "text/plain", Size: 10, Type: types.Incoming, Flags: failed},
		{ID: 3, TransferID: "t", Name: "a.mp3", Directory: "music", MimeType: "audio/mpeg", Size: 100, Type: types.Incoming, Flags: flags},
	}
	members := []types.Recipient{{TransferID: "t", DeviceID: "dev", DeviceName: "Laptop", Type: types.Incoming}}
	return tree.Aggregate(items, members, tree.View{}).Nodes
}

func TestRenderTree(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderTree(&buf, sampleNodes(), RenderOptions{Formatter: tree.DefaultFormatter}); err != nil {
		t.Fatalf("RenderTree: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	for i, want := range []string{tree.HomeName, "photo.jpg", "notes.txt", "music"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "!") {
		t.Errorf("interrupted item not marked: %q", lines[2])
	}
	if !strings.Contains(lines[1], "2.0 KB") {
		t.Errorf("item size missing: %q", lines[1])
	}
}

func TestRenderTreeGrouped(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderTree(&buf, sampleNodes(), RenderOptions{Formatter: tree.DefaultFormatter, Grouped: true}); err != nil {
		t.Fatalf("RenderTree: %v", err)
	}

	out := buf.String()
	order := []string{"TRANSFER DETAILS", "FOLDER", "INTERRUPTED", "notes.txt", "FILE", "photo.jpg"}
	pos := 0
	for _, want := range order {
		i := strings.Index(out[pos:], want)
		if i < 0 {
			t.Fatalf("%q missing or out of order in:\n%s", want, out)
		}
		pos += i + len(want)
	}
}

func TestItemBarsPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	bars := newItemBars("Receiving", &buf, false)
	bars.Start(2, 30)

	meta := types.ItemMetadata{ID: 1, Name: "a.txt", Size: 10}
	bars.Observe(types.ProgressUpdate{ItemID: 1, Flag: types.FlagInProgress(0), Item: &meta})
	bars.Observe(types.ProgressUpdate{ItemID: 1, Flag: types.FlagInProgress(10), NewBytes: 10})
	bars.Observe(types.ProgressUpdate{ItemID: 1, Flag: types.FlagDone})
	bars.Observe(types.ProgressUpdate{ItemID: 2, Flag: types.FlagInterrupted})
	bars.Finish(reporter.Summary{Done: 1, Interrupted: 1, Bytes: 10, Duration: time.Second})

	out := buf.String()
	for _, want := range []string{"Receiving [1/2] a.txt", "✓ a.txt", "✗ item 2", "Items completed: 1", "Items interrupted: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistory(t *testing.T) {
	status := sampleNodes()[0]
	entries := []HistoryEntry{
		{ID: "first", Created: time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local), Status: status},
		{ID: "second", Created: time.Date(2024, 3, 2, 10, 0, 0, 0, time.Local), Status: status},
	}

	var buf bytes.Buffer
	if err := RenderHistory(&buf, entries, tree.DefaultFormatter); err != nil {
		t.Fatalf("RenderHistory: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "first") || !strings.Contains(lines[0], "2024-03-01 10:00") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[1]), "!") {
		t.Errorf("status issues not marked: %q", lines[1])
	}
}
