package tree

import (
	"testing"

	"trebleshot/pkg/types"
)

func sampleResult() *Result {
	items := []types.TransferItem{
		{ID: 1, Name: "Holiday.JPG", MimeType: "image/jpeg", Size: 10, Type: types.Incoming,
			Flags: types.NewFlagSet(map[string]types.Flag{types.IncomingKey: types.FlagDone})},
		{ID: 2, Name: "notes.txt", MimeType: "text/plain", Size: 10, Type: types.Incoming,
			Flags: types.NewFlagSet(map[string]types.Flag{types.IncomingKey: types.FlagInterrupted})},
		{ID: 3, Name: "song.mp3", MimeType: "audio/mpeg", Size: 10, Type: types.Incoming,
			Flags: types.NewFlagSet(map[string]types.Flag{types.IncomingKey: types.FlagInProgress(5)})},
		{ID: 4, Name: "cover.png", MimeType: "image/png", Directory: "Albums", Size: 10, Type: types.Incoming,
			Flags: types.NewFlagSet(nil)},
	}
	members := []types.Recipient{{TransferID: "t", DeviceID: "s", DeviceName: "Sender", Type: types.Incoming}}
	return Aggregate(items, members, View{})
}

func TestGroup(t *testing.T) {
	res := sampleResult()

	want := map[string]Section{
		HomeName:      SectionStatus,
		"Holiday.JPG": SectionFile,
		"notes.txt":   SectionFileError,
		"song.mp3":    SectionFileOngoing,
		"Albums":      SectionFolder,
	}
	for _, n := range res.Nodes {
		if got := Group(n); got != want[n.Name()] {
			t.Errorf("Group(%s) = %v, want %v", n.Name(), got, want[n.Name()])
		}
	}

	storage := NewStorageStatusNode("/tmp", 1, 2, 0)
	if Group(storage) != SectionStatus {
		t.Error("storage rows belong to the details section")
	}
}

func TestSections(t *testing.T) {
	res := sampleResult()
	nodes := append(res.Nodes, NewStorageStatusNode("/tmp", 1, 2, 0))

	groups := Sections(nodes)

	wantTitles := []string{"Transfer details", "Folder", "Ongoing", "Interrupted", "File"}
	if len(groups) != len(wantTitles) {
		t.Fatalf("expected %d sections, got %d", len(wantTitles), len(groups))
	}
	for i, g := range groups {
		if g.Title != wantTitles[i] {
			t.Errorf("section %d title = %q, want %q", i, g.Title, wantTitles[i])
		}
	}
	if len(groups[0].Nodes) != 2 || groups[0].Nodes[0].Kind() != KindStatus || groups[0].Nodes[1].Kind() != KindStorage {
		t.Error("details section should hold status then storage")
	}
}

func TestFilter(t *testing.T) {
	res := sampleResult()

	tests := []struct {
		name     string
		keywords []string
		want     []string
	}{
		{"no keywords", nil, []string{HomeName, "Holiday.JPG", "notes.txt", "song.mp3", "Albums"}},
		{"blank keywords", []string{" ", ""}, []string{HomeName, "Holiday.JPG", "notes.txt", "song.mp3", "Albums"}},
		{"case insensitive name", []string{"holiday"}, []string{HomeName, "Holiday.JPG"}},
		{"mime type", []string{"audio"}, []string{HomeName, "song.mp3"}},
		{"folder name", []string{"alb"}, []string{HomeName, "Albums"}},
		{"any keyword", []string{"NOTES", "image"}, []string{HomeName, "Holiday.JPG", "notes.txt"}},
		{"nothing matches", []string{"zzz"}, []string{HomeName}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(res.Nodes, tt.keywords)
			if len(got) != len(tt.want) {
				t.Fatalf("Filter() returned %d nodes, want %d", len(got), len(tt.want))
			}
			for i, n := range got {
				if n.Name() != tt.want[i] {
					t.Errorf("node %d = %q, want %q", i, n.Name(), tt.want[i])
				}
			}
		})
	}
}
