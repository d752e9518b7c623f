package types

// DeviceInfo identifies a peer device on the wire
type DeviceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ItemMetadata describes one transfer item in a manifest
type ItemMetadata struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Directory string `json:"directory,omitempty"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
}

// Manifest is sent by the sender once the receiver is ready
type Manifest struct {
	TransferID string         `json:"transferId"`
	Sender     DeviceInfo     `json:"sender"`
	Items      []ItemMetadata `json:"items"`
}

// TotalSize returns the sum of all item sizes in the manifest
func (m Manifest) TotalSize() int64 {
	var total int64
	for _, item := range m.Items {
		total += item.Size
	}
	return total
}

// ProgressUpdate reports a flag change for one item of a transfer
type ProgressUpdate struct {
	TransferID string
	ItemID     int64
	Key        string // IncomingKey or the recipient device id
	Flag       Flag
	NewBytes   uint64        // Bytes moved since the previous update
	Item       *ItemMetadata // Set on the first update of an item
}
