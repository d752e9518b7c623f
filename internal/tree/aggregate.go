// Package tree turns the flat item list of a transfer into the rows of a
// virtual directory browser: a status summary, first-level folders, the items
// of the browsed directory and, at the root, the destination storage.
package tree

import (
	"strings"

	"trebleshot/pkg/types"
)

// HomeName is the status name at the root of a transfer
const HomeName = "Home"

// View selects what is browsed: a virtual directory and optionally one member
type View struct {
	Path      string
	Recipient *types.Recipient
}

// Result is the ordered node list of one refresh
type Result struct {
	Transfer    types.Transfer
	Status      *StatusNode
	Storage     *StorageStatusNode // Set by Loader at the root of transfers with incoming items
	Nodes       []Node
	HasIncoming bool
}

// Aggregate builds the nodes for view from the items of one transfer. Items
// directly in the browsed directory become leaves, deeper items are counted
// into their first-level folder, and all of them into the status node.
func Aggregate(items []types.TransferItem, members []types.Recipient, view View) *Result {
	path := types.CleanDirectory(view.Path)
	status := newStatusNode(statusName(path, view.Recipient), path)

	res := &Result{
		Status: status,
		Nodes:  []Node{status},
	}
	folders := make(map[string]*FolderNode)

	prefix := ""
	if path != "" {
		prefix = path + types.DirectorySeparator
	}

	for _, item := range items {
		dir := types.CleanDirectory(item.Directory)
		if path != "" && dir == "" {
			continue
		}

		// One snapshot per item keeps all merges of the item consistent
		flags := item.Flags.Snapshot()

		var folder *FolderNode
		switch {
		case dir == path:
			res.Nodes = append(res.Nodes, newItemNode(item, flags, members, view.Recipient))
		case path == "" || strings.HasPrefix(dir, prefix):
			segment := strings.TrimPrefix(dir, prefix)
			if i := strings.Index(segment, types.DirectorySeparator); i >= 0 {
				segment = segment[:i]
			}
			folder = folders[segment]
			if folder == nil {
				folder = newFolderNode(segment, prefix+segment)
				folders[segment] = folder
				res.Nodes = append(res.Nodes, folder)
			}
		default:
			continue
		}

		incoming := item.Type == types.Incoming
		if incoming {
			res.HasIncoming = true
		}
		mergeItem(status, folder, item, flags, members, view.Recipient)
	}

	return res
}

func statusName(path string, recipient *types.Recipient) string {
	if path != "" {
		return types.BaseName(path)
	}
	if recipient != nil {
		return recipient.DeviceName
	}
	return HomeName
}

func mergeItem(status *StatusNode, folder *FolderNode, item types.TransferItem, flags types.FlagSnapshot,
	members []types.Recipient, recipient *types.Recipient) {
	merge := func(flag types.Flag, incoming bool) {
		status.merge(item.Size, flag, incoming)
		if folder != nil {
			folder.merge(item.Size, flag, incoming)
		}
	}

	switch {
	case item.Type == types.Incoming:
		merge(flags.Get(types.IncomingKey), true)
	case recipient != nil:
		merge(flags.Get(recipient.DeviceID), false)
	case len(members) == 0:
		// Without members there is nobody to count against; the item is still
		// part of the totals once, as pending.
		merge(types.FlagPending, false)
	default:
		for _, m := range members {
			if m.Type != types.Outgoing {
				continue
			}
			merge(flags.Get(m.DeviceID), false)
		}
	}
}
