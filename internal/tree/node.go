package tree

import (
	"hash/fnv"
	"path/filepath"
	"strings"

	"trebleshot/pkg/types"
)

// Kind tells the node variants apart
type Kind int

const (
	KindStatus Kind = iota
	KindFolder
	KindItem
	KindStorage
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindFolder:
		return "folder"
	case KindItem:
		return "item"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Icon names the symbol a node is drawn with
type Icon string

const (
	IconDeviceHub Icon = "device-hub"
	IconWeb       Icon = "web"
	IconFolder    Icon = "folder"
	IconSave      Icon = "save"
	IconImage     Icon = "image"
	IconVideo     Icon = "video"
	IconAudio     Icon = "audio"
	IconText      Icon = "text"
	IconArchive   Icon = "archive"
	IconFile      Icon = "file"
)

// Node is one row of the browse view. The set of implementations is closed.
type Node interface {
	Kind() Kind
	ID() int64
	Name() string
	Icon() Icon
	Percentage() float64
	HasIssues() bool
	IsComplete() bool
	IsOngoing() bool
	FirstText(f Formatter) string
	SecondText(f Formatter) string
	ThirdText(f Formatter) string

	node()
}

func hashID(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// Totals accumulates the merged flags of the items below a folder
type Totals struct {
	NumberOfTotal     int
	NumberOfCompleted int
	BytesTotal        int64
	BytesCompleted    int64
	BytesReceived     int64
	Issues            bool
	Ongoing           bool
}

func (t *Totals) merge(size int64, flag types.Flag, incoming bool) {
	t.NumberOfTotal++
	t.BytesTotal += size

	switch {
	case flag.State == types.Done:
		t.NumberOfCompleted++
		t.BytesCompleted += size
	case flag.IsError():
		t.Issues = true
	case flag.State == types.InProgress:
		t.BytesCompleted += flag.Bytes
		t.Ongoing = true
		if incoming {
			t.BytesReceived += flag.Bytes
		}
	}
}

// FolderNode aggregates every item below one first-level child directory
type FolderNode struct {
	Totals
	Directory string // Full virtual path of the folder
	name      string
}

func newFolderNode(name, directory string) *FolderNode {
	return &FolderNode{name: name, Directory: directory}
}

func (n *FolderNode) node()        {}
func (n *FolderNode) Kind() Kind   { return KindFolder }
func (n *FolderNode) ID() int64    { return hashID(n.Directory) }
func (n *FolderNode) Name() string { return n.name }
func (n *FolderNode) Icon() Icon   { return IconFolder }

func (n *FolderNode) Percentage() float64 {
	if n.BytesTotal == 0 || n.BytesCompleted == 0 {
		return 0
	}
	return float64(n.BytesCompleted) / float64(n.BytesTotal)
}

func (n *FolderNode) HasIssues() bool { return n.Issues }

// IsComplete is false for a folder with no merged items
func (n *FolderNode) IsComplete() bool {
	return n.NumberOfTotal == n.NumberOfCompleted && n.NumberOfTotal != 0
}

func (n *FolderNode) IsOngoing() bool { return n.Ongoing }

func (n *FolderNode) FirstText(f Formatter) string { return f.Size(n.BytesTotal) }

func (n *FolderNode) SecondText(f Formatter) string {
	return f.Files(n.NumberOfCompleted, n.NumberOfTotal)
}

func (n *FolderNode) ThirdText(f Formatter) string { return f.Percent(n.Percentage()) }

// StatusNode summarises everything reachable from the browsed directory
type StatusNode struct {
	FolderNode
	ServedOnWeb bool
}

func newStatusNode(name, directory string) *StatusNode {
	return &StatusNode{FolderNode: FolderNode{name: name, Directory: directory}}
}

func (n *StatusNode) Kind() Kind { return KindStatus }

func (n *StatusNode) ID() int64 {
	if n.Directory != "" {
		return hashID(n.Directory)
	}
	return hashID(n.name)
}

func (n *StatusNode) Icon() Icon {
	if n.ServedOnWeb {
		return IconWeb
	}
	return IconDeviceHub
}

// StorageStatusNode describes the storage incoming items are written to
type StorageStatusNode struct {
	Directory     string
	BytesTotal    int64
	BytesFree     int64
	BytesRequired int64
	name          string
}

// NewStorageStatusNode creates the storage row. free and total are -1 when unknown.
func NewStorageStatusNode(directory string, free, total, required int64) *StorageStatusNode {
	name := filepath.Base(directory)
	if directory == "" {
		name = "Storage"
	}
	return &StorageStatusNode{
		Directory:     directory,
		BytesTotal:    total,
		BytesFree:     free,
		BytesRequired: required,
		name:          name,
	}
}

func (n *StorageStatusNode) node()      {}
func (n *StorageStatusNode) Kind() Kind { return KindStorage }

func (n *StorageStatusNode) ID() int64 {
	if n.Directory != "" {
		return hashID(n.Directory)
	}
	return hashID(n.name)
}

func (n *StorageStatusNode) Name() string { return n.name }
func (n *StorageStatusNode) Icon() Icon   { return IconSave }

// Percentage is the used share of the storage
func (n *StorageStatusNode) Percentage() float64 {
	if n.BytesTotal <= 0 || n.BytesFree <= 0 {
		return 0
	}
	return float64(n.BytesTotal-n.BytesFree) / float64(n.BytesTotal)
}

func (n *StorageStatusNode) HasIssues() bool {
	return n.BytesFree < n.BytesRequired && n.BytesFree != -1
}

func (n *StorageStatusNode) IsComplete() bool {
	return n.BytesFree == -1 || !n.HasIssues()
}

func (n *StorageStatusNode) IsOngoing() bool { return false }

func (n *StorageStatusNode) FirstText(f Formatter) string {
	if n.BytesFree == -1 {
		return "Unknown"
	}
	return f.Size(n.BytesFree)
}

func (n *StorageStatusNode) SecondText(f Formatter) string { return "Save path" }

func (n *StorageStatusNode) ThirdText(f Formatter) string { return f.Percent(n.Percentage()) }

// ItemNode is a transfer item that lives directly in the browsed directory.
// Flag reads go through the snapshot taken when the node was built.
type ItemNode struct {
	Item              types.TransferItem
	Thumbnail         string
	SupportsThumbnail bool

	flags     types.FlagSnapshot
	members   []types.Recipient
	recipient *types.Recipient
}

func newItemNode(item types.TransferItem, flags types.FlagSnapshot, members []types.Recipient, recipient *types.Recipient) *ItemNode {
	return &ItemNode{Item: item, flags: flags, members: members, recipient: recipient}
}

func (n *ItemNode) node()        {}
func (n *ItemNode) Kind() Kind   { return KindItem }
func (n *ItemNode) ID() int64    { return n.Item.ID }
func (n *ItemNode) Name() string { return n.Item.Name }

func (n *ItemNode) Icon() Icon {
	mime := n.Item.MimeType
	switch {
	case strings.HasPrefix(mime, "image/"):
		return IconImage
	case strings.HasPrefix(mime, "video/"):
		return IconVideo
	case strings.HasPrefix(mime, "audio/"):
		return IconAudio
	case strings.HasPrefix(mime, "text/"):
		return IconText
	case strings.Contains(mime, "zip"), strings.Contains(mime, "tar"),
		strings.Contains(mime, "compressed"), strings.Contains(mime, "archive"):
		return IconArchive
	default:
		return IconFile
	}
}

// perspective returns the flags that decide this item's state: the single
// incoming flag, the selected recipient's flag, or one per outgoing member.
func (n *ItemNode) perspective() []types.Flag {
	if n.Item.Type == types.Incoming {
		return []types.Flag{n.flags.Get(types.IncomingKey)}
	}
	if n.recipient != nil {
		return []types.Flag{n.flags.Get(n.recipient.DeviceID)}
	}
	var flags []types.Flag
	for _, m := range n.members {
		if m.Type != types.Outgoing {
			continue
		}
		flags = append(flags, n.flags.Get(m.DeviceID))
	}
	return flags
}

// Percentage averages the progress over the flags of the item's perspective
func (n *ItemNode) Percentage() float64 {
	flags := n.perspective()
	if len(flags) == 0 {
		return 0
	}
	var sum float64
	for _, flag := range flags {
		sum += flag.Ratio(n.Item.Size)
	}
	return sum / float64(len(flags))
}

func (n *ItemNode) HasIssues() bool {
	if len(n.members) == 0 {
		return false
	}
	for _, flag := range n.perspective() {
		if flag.IsError() {
			return true
		}
	}
	return false
}

func (n *ItemNode) IsComplete() bool {
	if len(n.members) == 0 {
		return false
	}
	flags := n.perspective()
	if len(flags) == 0 {
		return false
	}
	for _, flag := range flags {
		if flag.State != types.Done {
			return false
		}
	}
	return true
}

func (n *ItemNode) IsOngoing() bool {
	if len(n.members) == 0 {
		return false
	}
	for _, flag := range n.perspective() {
		if flag.State == types.InProgress {
			return true
		}
	}
	return false
}

func (n *ItemNode) FirstText(f Formatter) string { return f.Size(n.Item.Size) }

func (n *ItemNode) SecondText(f Formatter) string {
	if n.recipient != nil {
		return n.recipient.DeviceName
	}
	devices := 1
	if n.Item.Type == types.Outgoing {
		devices = len(n.flags)
	}
	return f.Devices(devices)
}

// ThirdText shows the flag, or the progress while the item is moving
func (n *ItemNode) ThirdText(f Formatter) string {
	flags := n.perspective()
	if len(flags) == 1 {
		flag := flags[0]
		if flag.State == types.InProgress {
			return f.Percent(flag.Ratio(n.Item.Size))
		}
		return flag.State.String()
	}

	switch {
	case n.HasIssues():
		return types.Interrupted.String()
	case n.IsComplete():
		return types.Done.String()
	case n.IsOngoing():
		return f.Percent(n.Percentage())
	default:
		return types.Pending.String()
	}
}
