package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"trebleshot/pkg/types"
)

func seed(t *testing.T, s *JSONStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := s.PutTransfer(ctx, types.Transfer{ID: "t1", Created: base}); err != nil {
		t.Fatalf("PutTransfer failed: %v", err)
	}
	items := []types.TransferItem{
		{ID: 1, TransferID: "t1", Name: "root.txt", Size: 10, Type: types.Incoming, LastChange: base.Add(3 * time.Second)},
		{ID: 2, TransferID: "t1", Name: "a.jpg", Directory: "/photos/", Size: 20, Type: types.Incoming, LastChange: base.Add(1 * time.Second)},
		{ID: 3, TransferID: "t1", Name: "b.jpg", Directory: "photos/2023", Size: 30, Type: types.Incoming, LastChange: base.Add(2 * time.Second)},
		{ID: 4, TransferID: "t1", Name: "c.jpg", Directory: "photosets", Size: 40, Type: types.Outgoing, LastChange: base.Add(4 * time.Second)},
	}
	if err := s.PutItems(ctx, items); err != nil {
		t.Fatalf("PutItems failed: %v", err)
	}
}

func ids(items []types.TransferItem) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQuery(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		sel  Select
		want []int64
	}{
		{"all ascending", Select{TransferID: "t1"}, []int64{2, 3, 1, 4}},
		{"all descending", Select{TransferID: "t1", Order: OrderDescending}, []int64{4, 1, 3, 2}},
		{"path prefix does not match sibling", Select{TransferID: "t1", Path: "photos"}, []int64{2, 3}},
		{"nested path", Select{TransferID: "t1", Path: "photos/2023"}, []int64{3}},
		{"type filter", Select{TransferID: "t1", Type: ItemTypePtr(types.Outgoing)}, []int64{4}},
		{"unknown transfer", Select{TransferID: "missing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.Query(ctx, tt.sel)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if got := ids(items); !equalIDs(got, tt.want) {
				t.Errorf("Query() ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPutItemsNormalisesDirectory(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)

	items, _ := s.Query(context.Background(), Select{TransferID: "t1", Path: "photos"})
	for _, item := range items {
		if item.Directory != "photos" && item.Directory != "photos/2023" {
			t.Errorf("unexpected directory %q", item.Directory)
		}
	}
}

func TestPutItemsUnknownTransfer(t *testing.T) {
	s := NewMemoryStore()
	err := s.PutItems(context.Background(), []types.TransferItem{{ID: 1, TransferID: "nope"}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReconstruct(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	transfer, err := s.Reconstruct(ctx, "t1")
	if err != nil || transfer.ID != "t1" {
		t.Errorf("Reconstruct(t1) = %+v, %v", transfer, err)
	}

	if _, err := s.Reconstruct(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadMembers(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	members := []types.Recipient{
		{TransferID: "t1", DeviceID: "d1", DeviceName: "Phone", Type: types.Outgoing},
		{TransferID: "t1", DeviceID: "d2", DeviceName: "Laptop", Type: types.Outgoing},
		{TransferID: "t1", DeviceID: "d3", DeviceName: "Tablet", Type: types.Incoming},
	}
	for _, m := range members {
		if err := s.PutMember(ctx, m); err != nil {
			t.Fatalf("PutMember failed: %v", err)
		}
	}
	// upsert keeps one entry per device and direction
	if err := s.PutMember(ctx, types.Recipient{TransferID: "t1", DeviceID: "d1", DeviceName: "Phone 2", Type: types.Outgoing}); err != nil {
		t.Fatalf("PutMember failed: %v", err)
	}

	all, _ := s.LoadMembers(ctx, "t1", MemberFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 members, got %d", len(all))
	}
	if all[0].DeviceName != "Phone 2" {
		t.Errorf("expected upserted name, got %q", all[0].DeviceName)
	}

	outgoing, _ := s.LoadMembers(ctx, "t1", MemberFilter{Type: ItemTypePtr(types.Outgoing)})
	if len(outgoing) != 2 {
		t.Errorf("expected 2 outgoing members, got %d", len(outgoing))
	}

	one, _ := s.LoadMembers(ctx, "t1", MemberFilter{DeviceID: "d3"})
	if len(one) != 1 || one[0].DeviceName != "Tablet" {
		t.Errorf("unexpected device filter result %+v", one)
	}

	if err := s.PutMember(ctx, types.Recipient{TransferID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateFlagVisibleThroughQueriedItems(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	items, _ := s.Query(ctx, Select{TransferID: "t1", Path: "photos/2023"})
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}

	if err := s.UpdateFlag(ctx, "t1", 3, types.IncomingKey, types.FlagInProgress(15)); err != nil {
		t.Fatalf("UpdateFlag failed: %v", err)
	}
	if got := items[0].Flag(); got != types.FlagInProgress(15) {
		t.Errorf("queried item should share flags, got %v", got)
	}

	if err := s.UpdateFlag(ctx, "t1", 99, types.IncomingKey, types.FlagDone); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
	if err := s.UpdateFlag(ctx, "nope", 1, types.IncomingKey, types.FlagDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentUpdateFlagAndQuery(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := int64(0); i < 50; i++ {
				_ = s.UpdateFlag(ctx, "t1", 2, types.IncomingKey, types.FlagInProgress(i))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				items, _ := s.Query(ctx, Select{TransferID: "t1"})
				for _, item := range items {
					_ = item.Flags.Snapshot()
				}
			}
		}()
	}
	wg.Wait()

	if err := s.UpdateFlag(ctx, "t1", 2, types.IncomingKey, types.FlagDone); err != nil {
		t.Fatalf("UpdateFlag failed: %v", err)
	}
	items, _ := s.Query(ctx, Select{TransferID: "t1", Path: "photos"})
	for _, item := range items {
		if item.ID == 2 && item.Flag() != types.FlagDone {
			t.Errorf("expected Done, got %v", item.Flag())
		}
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "transfers.json")
	ctx := context.Background()

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	seed(t, s)
	if err := s.PutMember(ctx, types.Recipient{TransferID: "t1", DeviceID: "d1", DeviceName: "Phone", Type: types.Outgoing}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateFlag(ctx, "t1", 4, "d1", types.FlagInProgress(5)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	items, _ := reopened.Query(ctx, Select{TransferID: "t1"})
	if len(items) != 4 {
		t.Fatalf("expected 4 items after reopen, got %d", len(items))
	}
	for _, item := range items {
		if item.ID == 4 && item.FlagFor("d1") != types.FlagInProgress(5) {
			t.Errorf("flag not persisted, got %v", item.FlagFor("d1"))
		}
	}
	members, _ := reopened.LoadMembers(ctx, "t1", MemberFilter{})
	if len(members) != 1 {
		t.Errorf("expected 1 member after reopen, got %d", len(members))
	}

	if err := reopened.RemoveTransfer(ctx, "t1"); err != nil {
		t.Fatalf("RemoveTransfer failed: %v", err)
	}
	again, _ := Open(path, nil)
	if transfers, _ := again.ListTransfers(ctx); len(transfers) != 0 {
		t.Errorf("expected no transfers after removal, got %d", len(transfers))
	}
	if err := again.RemoveTransfer(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListTransfersNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	_ = s.PutTransfer(ctx, types.Transfer{ID: "old", Created: base.Add(-time.Hour)})
	_ = s.PutTransfer(ctx, types.Transfer{ID: "new", Created: base})

	transfers, err := s.ListTransfers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 2 || transfers[0].ID != "new" {
		t.Errorf("unexpected order: %+v", transfers)
	}
}

func TestParseOrder(t *testing.T) {
	if o, err := ParseOrder("desc"); err != nil || o != OrderDescending {
		t.Errorf("ParseOrder(desc) = %v, %v", o, err)
	}
	if o, err := ParseOrder(""); err != nil || o != OrderAscending {
		t.Errorf("ParseOrder(\"\") = %v, %v", o, err)
	}
	if _, err := ParseOrder("sideways"); err == nil {
		t.Error("expected error for invalid order")
	}
}
