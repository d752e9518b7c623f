package tree

import (
	"context"
	"fmt"

	"trebleshot/internal/diskspace"
	"trebleshot/internal/logging"
	"trebleshot/internal/store"
	"trebleshot/internal/thumbnail"
	"trebleshot/pkg/types"
)

// LoadOptions tune a refresh
type LoadOptions struct {
	Order          store.Order
	LoadThumbnails bool
}

// Loader runs one refresh of the browse view against the record store
type Loader struct {
	store      store.Store
	disk       diskspace.Provider
	thumbnails thumbnail.Resolver
	logger     *logging.Logger
}

// NewLoader creates a loader. disk and thumbnails may be nil, in which case
// storage and previews are reported as unknown.
func NewLoader(s store.Store, disk diskspace.Provider, thumbnails thumbnail.Resolver, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{
		store:      s,
		disk:       disk,
		thumbnails: thumbnails,
		logger:     logger.Component("tree"),
	}
}

// ResolveRecipient looks up the member a per-device view is scoped to
func (l *Loader) ResolveRecipient(ctx context.Context, transferID, deviceID string) (*types.Recipient, error) {
	members, err := l.store.LoadMembers(ctx, transferID, store.MemberFilter{DeviceID: deviceID})
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("device %s is not a member of transfer %s", deviceID, transferID)
	}
	return &members[0], nil
}

// Load reconstructs the transfer and aggregates the items visible in view.
// On error the caller keeps whatever it showed before.
func (l *Loader) Load(ctx context.Context, transferID string, view View, opts LoadOptions) (*Result, error) {
	transfer, err := l.store.Reconstruct(ctx, transferID)
	if err != nil {
		l.logger.Error().Err(err).Str("transfer", transferID).Msg("failed to reconstruct transfer")
		return nil, fmt.Errorf("failed to reconstruct transfer %s: %w", transferID, err)
	}

	sel := store.Select{
		TransferID: transferID,
		Path:       view.Path,
		Order:      opts.Order,
	}
	if view.Recipient != nil {
		sel.Type = store.ItemTypePtr(view.Recipient.Type)
	}

	items, err := l.store.Query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	members, err := l.store.LoadMembers(ctx, transferID, store.MemberFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	res := Aggregate(items, members, view)
	res.Transfer = transfer
	res.Status.ServedOnWeb = transfer.ServedOnWeb

	var savePath diskspace.Handle
	if l.disk != nil {
		savePath = l.disk.ResolveSavePath(transfer)
	}

	if opts.LoadThumbnails && l.thumbnails != nil {
		l.attachThumbnails(res, transfer, savePath.Path)
	}

	if res.HasIncoming && types.CleanDirectory(view.Path) == "" {
		res.Storage = l.storageNode(savePath, res.Status.BytesTotal-res.Status.BytesReceived)
		res.Nodes = append(res.Nodes, res.Storage)
	}

	l.logger.Debug().
		Str("transfer", transferID).
		Str("path", view.Path).
		Int("nodes", len(res.Nodes)).
		Msg("transfer tree loaded")
	return res, nil
}

func (l *Loader) attachThumbnails(res *Result, transfer types.Transfer, savePath string) {
	for _, n := range res.Nodes {
		item, ok := n.(*ItemNode)
		if !ok {
			continue
		}
		doc, supported, err := l.thumbnails.Resolve(item.Item, transfer, savePath)
		if err != nil {
			l.logger.Warn().Err(err).Int64("item", item.Item.ID).Msg("thumbnail unavailable")
			continue
		}
		item.Thumbnail = doc
		item.SupportsThumbnail = supported
	}
}

func (l *Loader) storageNode(h diskspace.Handle, required int64) *StorageStatusNode {
	free, total := diskspace.Unknown, diskspace.Unknown
	if l.disk != nil {
		var err error
		free, total, err = l.disk.Space(h)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", h.Path).Msg("failed to read storage space")
			free, total = diskspace.Unknown, diskspace.Unknown
		}
	}
	return NewStorageStatusNode(h.Path, free, total, required)
}
