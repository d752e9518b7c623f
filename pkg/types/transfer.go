package types

import (
	"path"
	"strings"
	"time"
)

// ItemType is the direction of a transfer item relative to this device
type ItemType int

const (
	Incoming ItemType = iota
	Outgoing
)

// String returns the string representation of ItemType
func (t ItemType) String() string {
	switch t {
	case Incoming:
		return "Incoming"
	case Outgoing:
		return "Outgoing"
	default:
		return "Unknown"
	}
}

// Transfer is one file sharing session between this device and its peers
type Transfer struct {
	ID          string    `json:"id"`
	Created     time.Time `json:"created"`
	SavePath    string    `json:"savePath,omitempty"`    // Destination for incoming items, overrides the default
	ServedOnWeb bool      `json:"servedOnWeb,omitempty"` // Items are also exposed to browsers
}

// TransferItem is one file unit belonging to a transfer
type TransferItem struct {
	ID         int64     `json:"id"`
	TransferID string    `json:"transferId"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType,omitempty"`
	Directory  string    `json:"directory,omitempty"` // Virtual directory, "/" separated, empty is root
	Size       int64     `json:"size"`
	Type       ItemType  `json:"type"`
	File       string    `json:"file,omitempty"` // Source path when outgoing, stored name when incoming
	LastChange time.Time `json:"lastChange"`
	Flags      *FlagSet  `json:"flags"`
}

// Flag returns the single flag of an incoming item
func (i TransferItem) Flag() Flag {
	return i.Flags.Get(IncomingKey)
}

// FlagFor returns the flag of an outgoing item for a recipient device
func (i TransferItem) FlagFor(deviceID string) Flag {
	return i.Flags.Get(deviceID)
}

// Metadata returns the wire description of the item
func (i TransferItem) Metadata() ItemMetadata {
	return ItemMetadata{
		ID:        i.ID,
		Name:      i.Name,
		Directory: i.Directory,
		Size:      i.Size,
		MimeType:  i.MimeType,
	}
}

// Recipient is a peer device taking part in a transfer
type Recipient struct {
	TransferID string   `json:"transferId"`
	DeviceID   string   `json:"deviceId"`
	DeviceName string   `json:"deviceName"`
	Type       ItemType `json:"type"` // Direction of the items exchanged with this device
}

// DirectorySeparator separates the segments of a virtual directory
const DirectorySeparator = "/"

// CleanDirectory normalises a virtual directory: backslashes become the
// separator, redundant and surrounding separators are removed and "." is root.
func CleanDirectory(dir string) string {
	dir = strings.ReplaceAll(dir, "\\", DirectorySeparator)
	dir = strings.Trim(path.Clean(DirectorySeparator+dir), DirectorySeparator)
	return dir
}

// BaseName returns the last segment of a virtual directory
func BaseName(dir string) string {
	if i := strings.LastIndex(dir, DirectorySeparator); i >= 0 {
		return dir[i+len(DirectorySeparator):]
	}
	return dir
}
