// Package store keeps transfers, their items and members, and persists them
// as a JSON document.
package store

import (
	"context"
	"errors"

	"trebleshot/pkg/types"
)

var (
	ErrNotFound     = errors.New("transfer not found")
	ErrItemNotFound = errors.New("transfer item not found")
)

// Order sorts query results by last change time
type Order int

const (
	OrderAscending Order = iota
	OrderDescending
)

// String returns the string representation of Order
func (o Order) String() string {
	if o == OrderDescending {
		return "desc"
	}
	return "asc"
}

// ParseOrder accepts "asc" or "desc"
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "asc":
		return OrderAscending, nil
	case "desc":
		return OrderDescending, nil
	default:
		return OrderAscending, errors.New("order must be asc or desc")
	}
}

// Select narrows the items returned by Query
type Select struct {
	TransferID string
	Path       string          // Items in Path or below it; empty selects all
	Type       *types.ItemType // Only items of this direction
	Order      Order
}

// MemberFilter narrows the members returned by LoadMembers
type MemberFilter struct {
	Type     *types.ItemType
	DeviceID string
}

// Store is the transfer record store
type Store interface {
	Reconstruct(ctx context.Context, transferID string) (types.Transfer, error)
	Query(ctx context.Context, sel Select) ([]types.TransferItem, error)
	LoadMembers(ctx context.Context, transferID string, filter MemberFilter) ([]types.Recipient, error)

	PutTransfer(ctx context.Context, transfer types.Transfer) error
	PutItems(ctx context.Context, items []types.TransferItem) error
	PutMember(ctx context.Context, member types.Recipient) error
	UpdateFlag(ctx context.Context, transferID string, itemID int64, key string, flag types.Flag) error
	ListTransfers(ctx context.Context) ([]types.Transfer, error)
	RemoveTransfer(ctx context.Context, transferID string) error
	Close() error
}

// ItemTypePtr is a helper for building filters
func ItemTypePtr(t types.ItemType) *types.ItemType {
	return &t
}
