package tree

import (
	"math"
	"testing"

	"trebleshot/pkg/types"
)

var testMembers = []types.Recipient{
	{TransferID: "t", DeviceID: "d1", DeviceName: "Phone", Type: types.Outgoing},
	{TransferID: "t", DeviceID: "d2", DeviceName: "Laptop", Type: types.Outgoing},
}

func itemNode(item types.TransferItem, members []types.Recipient, recipient *types.Recipient) *ItemNode {
	return newItemNode(item, item.Flags.Snapshot(), members, recipient)
}

func TestItemNodeOutgoingAverages(t *testing.T) {
	item := outgoing(1, "", 100, map[string]types.Flag{"d1": types.FlagDone, "d2": types.FlagInProgress(50)})
	n := itemNode(item, testMembers, nil)

	if math.Abs(n.Percentage()-0.75) > 1e-9 {
		t.Errorf("Percentage() = %v, want 0.75", n.Percentage())
	}
	if n.IsComplete() {
		t.Error("item is not complete for every member")
	}
	if !n.IsOngoing() {
		t.Error("item should be ongoing")
	}
	if n.HasIssues() {
		t.Error("item has no issues")
	}
	if got := n.SecondText(DefaultFormatter); got != "2 devices" {
		t.Errorf("SecondText() = %q, want 2 devices", got)
	}
	if got := n.ThirdText(DefaultFormatter); got != "75%" {
		t.Errorf("ThirdText() = %q, want 75%%", got)
	}
}

func TestItemNodeSelectedRecipient(t *testing.T) {
	item := outgoing(1, "", 100, map[string]types.Flag{"d1": types.FlagDone, "d2": types.FlagInterrupted})

	phone := itemNode(item, testMembers, &testMembers[0])
	if !phone.IsComplete() || phone.HasIssues() || phone.Percentage() != 1 {
		t.Error("item should be complete for the phone")
	}
	if got := phone.SecondText(DefaultFormatter); got != "Phone" {
		t.Errorf("SecondText() = %q, want Phone", got)
	}
	if got := phone.ThirdText(DefaultFormatter); got != "Done" {
		t.Errorf("ThirdText() = %q, want Done", got)
	}

	laptop := itemNode(item, testMembers, &testMembers[1])
	if !laptop.HasIssues() || laptop.IsComplete() {
		t.Error("item should have issues for the laptop")
	}
	if got := laptop.ThirdText(DefaultFormatter); got != "Interrupted" {
		t.Errorf("ThirdText() = %q, want Interrupted", got)
	}

	all := itemNode(item, testMembers, nil)
	if got := all.ThirdText(DefaultFormatter); got != "Interrupted" {
		t.Errorf("ThirdText() without selection = %q, want Interrupted", got)
	}
}

func TestItemNodeWithoutMembers(t *testing.T) {
	item := incoming(1, "", 100, types.FlagDone)
	n := itemNode(item, nil, nil)

	if n.IsComplete() || n.HasIssues() || n.IsOngoing() {
		t.Error("predicates are false for an item without members")
	}
	if n.Percentage() != 1 {
		t.Errorf("Percentage() = %v, want 1", n.Percentage())
	}
	if got := n.SecondText(DefaultFormatter); got != "1 device" {
		t.Errorf("SecondText() = %q, want 1 device", got)
	}
}

func TestItemNodeIncoming(t *testing.T) {
	members := []types.Recipient{{TransferID: "t", DeviceID: "s", DeviceName: "Sender", Type: types.Incoming}}
	item := incoming(1, "", 200, types.FlagInProgress(50))
	item.Name = "movie.mp4"
	item.MimeType = "video/mp4"
	n := itemNode(item, members, nil)

	if !n.IsOngoing() || n.IsComplete() {
		t.Error("incoming item should be ongoing")
	}
	if got := n.ThirdText(Formatter{PercentDecimals: 1}); got != "25.0%" {
		t.Errorf("ThirdText() = %q, want 25.0%%", got)
	}
	if got := n.FirstText(DefaultFormatter); got != "200 B" {
		t.Errorf("FirstText() = %q, want 200 B", got)
	}
	if n.Icon() != IconVideo {
		t.Errorf("Icon() = %q, want %q", n.Icon(), IconVideo)
	}
	if n.Kind() != KindItem || n.Name() != "movie.mp4" {
		t.Error("unexpected kind or name")
	}
}

func TestItemNodeIcons(t *testing.T) {
	tests := []struct {
		mime string
		want Icon
	}{
		{"image/png", IconImage},
		{"audio/flac", IconAudio},
		{"text/plain", IconText},
		{"application/zip", IconArchive},
		{"application/x-tar", IconArchive},
		{"application/pdf", IconFile},
		{"", IconFile},
	}

	for _, tt := range tests {
		item := incoming(1, "", 1, types.FlagPending)
		item.MimeType = tt.mime
		if got := itemNode(item, nil, nil).Icon(); got != tt.want {
			t.Errorf("Icon(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestFolderNodeText(t *testing.T) {
	f := newFolderNode("A", "A")
	f.merge(1024, types.FlagDone, true)
	f.merge(1024, types.FlagPending, true)

	if got := f.FirstText(DefaultFormatter); got != "2.0 KB" {
		t.Errorf("FirstText() = %q, want 2.0 KB", got)
	}
	if got := f.SecondText(DefaultFormatter); got != "1 of 2 files" {
		t.Errorf("SecondText() = %q, want 1 of 2 files", got)
	}
	if got := f.ThirdText(DefaultFormatter); got != "50%" {
		t.Errorf("ThirdText() = %q, want 50%%", got)
	}
	if f.Icon() != IconFolder || f.Kind() != KindFolder {
		t.Error("unexpected icon or kind")
	}
}

func TestFolderPercentageZeroCases(t *testing.T) {
	zeroBytes := newFolderNode("z", "z")
	zeroBytes.merge(0, types.FlagDone, true)
	if zeroBytes.Percentage() != 0 {
		t.Errorf("zero byte folder percentage = %v, want 0", zeroBytes.Percentage())
	}
	if !zeroBytes.IsComplete() {
		t.Error("zero byte folder with a done item is complete")
	}

	noProgress := newFolderNode("p", "p")
	noProgress.merge(100, types.FlagPending, true)
	if noProgress.Percentage() != 0 {
		t.Errorf("folder without progress percentage = %v, want 0", noProgress.Percentage())
	}
}

func TestNodeIdentity(t *testing.T) {
	a1 := newFolderNode("b", "a/b")
	a2 := newFolderNode("b", "a/b")
	other := newFolderNode("b", "c/b")

	if a1.ID() != a2.ID() {
		t.Error("folders with the same path must share an id")
	}
	if a1.ID() == other.ID() {
		t.Error("folders with different paths must differ")
	}

	home := newStatusNode(HomeName, "")
	if home.ID() != hashID(HomeName) {
		t.Error("root status id hashes its name")
	}
	nested := newStatusNode("b", "a/b")
	if nested.ID() != hashID("a/b") {
		t.Error("nested status id hashes its directory")
	}
}

func TestStatusIcon(t *testing.T) {
	s := newStatusNode(HomeName, "")
	if s.Icon() != IconDeviceHub {
		t.Errorf("Icon() = %q, want %q", s.Icon(), IconDeviceHub)
	}
	s.ServedOnWeb = true
	if s.Icon() != IconWeb {
		t.Errorf("Icon() = %q, want %q", s.Icon(), IconWeb)
	}
	if s.Kind() != KindStatus {
		t.Errorf("Kind() = %v, want status", s.Kind())
	}
}

func TestStorageStatusNode(t *testing.T) {
	tests := []struct {
		name         string
		free, total  int64
		required     int64
		wantIssues   bool
		wantComplete bool
		wantPercent  float64
		wantFirst    string
	}{
		{"enough space", 600, 1000, 100, false, true, 0.4, "600 B"},
		{"not enough space", 50, 1000, 100, true, false, 0.95, "50 B"},
		{"unknown", -1, -1, 100, false, true, 0, "Unknown"},
		{"disk full", 0, 1000, 0, false, true, 0, "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewStorageStatusNode("/home/me/Downloads", tt.free, tt.total, tt.required)
			if n.HasIssues() != tt.wantIssues {
				t.Errorf("HasIssues() = %v, want %v", n.HasIssues(), tt.wantIssues)
			}
			if n.IsComplete() != tt.wantComplete {
				t.Errorf("IsComplete() = %v, want %v", n.IsComplete(), tt.wantComplete)
			}
			if math.Abs(n.Percentage()-tt.wantPercent) > 1e-9 {
				t.Errorf("Percentage() = %v, want %v", n.Percentage(), tt.wantPercent)
			}
			if got := n.FirstText(DefaultFormatter); got != tt.wantFirst {
				t.Errorf("FirstText() = %q, want %q", got, tt.wantFirst)
			}
			if n.SecondText(DefaultFormatter) != "Save path" || n.Name() != "Downloads" || n.IsOngoing() {
				t.Error("unexpected storage presentation")
			}
		})
	}
}
