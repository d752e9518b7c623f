package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"trebleshot/internal/logging"
	"trebleshot/pkg/types"
)

const documentVersion = 1

type record struct {
	Transfer types.Transfer       `json:"transfer"`
	Items    []types.TransferItem `json:"items"`
	Members  []types.Recipient    `json:"members"`
}

type document struct {
	Version   int       `json:"version"`
	Transfers []*record `json:"transfers"`
}

// JSONStore is an in-memory Store persisted to a single JSON file.
// Items handed out share their FlagSet with the store.
type JSONStore struct {
	mu        sync.RWMutex
	writeMu   sync.Mutex
	path      string
	transfers map[string]*record
	logger    *logging.Logger
	now       func() time.Time
}

// Open loads the store at path, creating its directory when needed.
// An empty path keeps everything in memory.
func Open(path string, logger *logging.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &JSONStore{
		path:      path,
		transfers: make(map[string]*record),
		logger:    logger.Component("store"),
		now:       time.Now,
	}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", path, err)
	}
	for _, rec := range doc.Transfers {
		for i := range rec.Items {
			if rec.Items[i].Flags == nil {
				rec.Items[i].Flags = types.NewFlagSet(nil)
			}
		}
		s.transfers[rec.Transfer.ID] = rec
	}
	s.logger.Debug().Int("transfers", len(s.transfers)).Str("path", path).Msg("store loaded")
	return s, nil
}

// NewMemoryStore returns a store that is never written to disk
func NewMemoryStore() *JSONStore {
	s, _ := Open("", nil)
	return s
}

func (s *JSONStore) Reconstruct(ctx context.Context, transferID string) (types.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return types.Transfer{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.transfers[transferID]
	if !ok {
		return types.Transfer{}, fmt.Errorf("%w: %s", ErrNotFound, transferID)
	}
	return rec.Transfer, nil
}

func (s *JSONStore) Query(ctx context.Context, sel Select) ([]types.TransferItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.transfers[sel.TransferID]
	if !ok {
		return nil, nil
	}

	prefix := types.CleanDirectory(sel.Path)
	var items []types.TransferItem
	for _, item := range rec.Items {
		if sel.Type != nil && item.Type != *sel.Type {
			continue
		}
		if prefix != "" && item.Directory != prefix &&
			!strings.HasPrefix(item.Directory, prefix+types.DirectorySeparator) {
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].LastChange, items[j].LastChange
		if sel.Order == OrderDescending {
			a, b = b, a
		}
		return a.Before(b)
	})
	return items, nil
}

func (s *JSONStore) LoadMembers(ctx context.Context, transferID string, filter MemberFilter) ([]types.Recipient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.transfers[transferID]
	if !ok {
		return nil, nil
	}

	var members []types.Recipient
	for _, m := range rec.Members {
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		if filter.DeviceID != "" && m.DeviceID != filter.DeviceID {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

func (s *JSONStore) PutTransfer(ctx context.Context, transfer types.Transfer) error {
	if transfer.ID == "" {
		return fmt.Errorf("transfer id must be set")
	}
	if transfer.Created.IsZero() {
		transfer.Created = s.now()
	}

	s.mu.Lock()
	if rec, ok := s.transfers[transfer.ID]; ok {
		rec.Transfer = transfer
	} else {
		s.transfers[transfer.ID] = &record{Transfer: transfer}
	}
	s.mu.Unlock()

	return s.persist()
}

func (s *JSONStore) PutItems(ctx context.Context, items []types.TransferItem) error {
	s.mu.Lock()
	for _, item := range items {
		rec, ok := s.transfers[item.TransferID]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrNotFound, item.TransferID)
		}

		item.Directory = types.CleanDirectory(item.Directory)
		if item.Flags == nil {
			item.Flags = types.NewFlagSet(nil)
		}
		if item.LastChange.IsZero() {
			item.LastChange = s.now()
		}

		replaced := false
		for i := range rec.Items {
			if rec.Items[i].ID == item.ID && rec.Items[i].Type == item.Type {
				rec.Items[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			rec.Items = append(rec.Items, item)
		}
	}
	s.mu.Unlock()

	return s.persist()
}

func (s *JSONStore) PutMember(ctx context.Context, member types.Recipient) error {
	s.mu.Lock()
	rec, ok := s.transfers[member.TransferID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, member.TransferID)
	}

	replaced := false
	for i := range rec.Members {
		if rec.Members[i].DeviceID == member.DeviceID && rec.Members[i].Type == member.Type {
			rec.Members[i] = member
			replaced = true
			break
		}
	}
	if !replaced {
		rec.Members = append(rec.Members, member)
	}
	s.mu.Unlock()

	return s.persist()
}

// UpdateFlag sets the flag of one item for key. Terminal flags are persisted
// immediately; progress flags are written on the next structural change or Close.
func (s *JSONStore) UpdateFlag(ctx context.Context, transferID string, itemID int64, key string, flag types.Flag) error {
	s.mu.Lock()
	rec, ok := s.transfers[transferID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, transferID)
	}

	var item *types.TransferItem
	for i := range rec.Items {
		if rec.Items[i].ID == itemID {
			item = &rec.Items[i]
			break
		}
	}
	if item == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%d", ErrItemNotFound, transferID, itemID)
	}

	item.Flags.Set(key, flag)
	item.LastChange = s.now()
	s.mu.Unlock()

	if flag.IsTerminal() {
		return s.persist()
	}
	return nil
}

func (s *JSONStore) ListTransfers(ctx context.Context) ([]types.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	transfers := make([]types.Transfer, 0, len(s.transfers))
	for _, rec := range s.transfers {
		transfers = append(transfers, rec.Transfer)
	}
	s.mu.RUnlock()

	sort.Slice(transfers, func(i, j int) bool {
		return transfers[i].Created.After(transfers[j].Created)
	})
	return transfers, nil
}

func (s *JSONStore) RemoveTransfer(ctx context.Context, transferID string) error {
	s.mu.Lock()
	if _, ok := s.transfers[transferID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, transferID)
	}
	delete(s.transfers, transferID)
	s.mu.Unlock()

	return s.persist()
}

// Close flushes pending progress to disk
func (s *JSONStore) Close() error {
	return s.persist()
}

func (s *JSONStore) persist() error {
	if s.path == "" {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	doc := document{Version: documentVersion, Transfers: make([]*record, 0, len(s.transfers))}
	for _, rec := range s.transfers {
		doc.Transfers = append(doc.Transfers, rec)
	}
	sort.Slice(doc.Transfers, func(i, j int) bool {
		return doc.Transfers[i].Transfer.ID < doc.Transfers[j].Transfer.ID
	})
	data, err := json.MarshalIndent(doc, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".transfers-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store: %w", err)
	}

	s.logger.Debug().Int("transfers", len(doc.Transfers)).Msg("store saved")
	return nil
}
