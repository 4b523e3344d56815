package keyslot

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"southwinds.dev/keyslot/persist"
)

// newTestTable builds an uninitialized table with no storage backend
func newTestTable(t *testing.T, count int) *Table {
	t.Helper()
	table, err := NewTable(Options{SlotCount: count})
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return table
}

// newStoredTable builds an initialized table over a filesystem store in a
// test temp directory
func newStoredTable(t *testing.T, count int, passphrase string) (*Table, persist.Store) {
	t.Helper()
	store, err := persist.NewFileSystemStore(t.TempDir(), passphrase)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	table, err := NewTable(Options{SlotCount: count, Store: store})
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if err = table.Initialize(); err != nil {
		t.Fatalf("failed to initialize table: %v", err)
	}
	t.Cleanup(table.WipeAll)
	return table, store
}

func testMaterial(t *testing.T, n int) []byte {
	t.Helper()
	material := make([]byte, n)
	if _, err := rand.Read(material); err != nil {
		t.Fatalf("failed to generate material: %v", err)
	}
	return material
}

func TestNewTableDefaults(t *testing.T) {
	table, err := NewTable(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if table.Capacity() != DefaultSlotCount {
		t.Errorf("capacity = %d, want %d", table.Capacity(), DefaultSlotCount)
	}
	if table.VolatileMin() != VendorMax-DefaultSlotCount+1 {
		t.Errorf("volatile min = 0x%08x, want 0x%08x",
			table.VolatileMin(), VendorMax-DefaultSlotCount+1)
	}
}

func TestNewTableRejectsBadCapacity(t *testing.T) {
	if _, err := NewTable(Options{SlotCount: -1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative capacity: got %v, want ErrInvalidArgument", err)
	}
	if _, err := NewTable(Options{SlotCount: maxSlotCount + 1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("oversized capacity: got %v, want ErrInvalidArgument", err)
	}
}

func TestAllocateRequiresInitialize(t *testing.T) {
	table := newTestTable(t, 4)

	if _, _, err := table.allocate(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("allocate before Initialize: got %v, want ErrNotInitialized", err)
	}
	if _, err := table.ImportVolatile(0, []byte{1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ImportVolatile before Initialize: got %v, want ErrNotInitialized", err)
	}

	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := table.allocate(); err != nil {
		t.Errorf("allocate after Initialize: %v", err)
	}
}

func TestAllocateHighestIndexFirst(t *testing.T) {
	table := newTestTable(t, 4)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	slot, volatileID, err := table.allocate()
	if err != nil {
		t.Fatal(err)
	}
	if slot != &table.slots[3] {
		t.Error("first allocation should reserve the highest-index slot")
	}
	if want := table.VolatileMin() + 3; volatileID.ID != want {
		t.Errorf("volatile id = 0x%08x, want 0x%08x", volatileID.ID, want)
	}
}

func TestAllocatorExhaustion(t *testing.T) {
	table := newTestTable(t, 4)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	ids := make([]KeyID, 0, 4)
	for i := 0; i < 4; i++ {
		id, err := table.ImportVolatile(0, testMaterial(t, 16))
		if err != nil {
			t.Fatalf("import %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	before := table.Stats()
	if before.VolatileSlots != 4 || before.EmptySlots != 0 {
		t.Fatalf("stats = %+v, want 4 volatile and 0 empty", before)
	}

	if _, err := table.ImportVolatile(0, testMaterial(t, 16)); !errors.Is(err, ErrOutOfSlots) {
		t.Fatalf("fifth import: got %v, want ErrOutOfSlots", err)
	}

	// Failure must not alter the table
	after := table.Stats()
	if after != before {
		t.Errorf("stats changed on failed allocation: %+v -> %+v", before, after)
	}
	for _, id := range ids {
		if _, err := table.GetOrLoad(id); err != nil {
			t.Errorf("key %s lost after failed allocation: %v", id, err)
		}
	}
}

func TestVolatilePlacementInvariant(t *testing.T) {
	table := newTestTable(t, 8)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if _, err := table.ImportVolatile(0, testMaterial(t, 16)); err != nil {
			t.Fatal(err)
		}
	}

	for idx := range table.slots {
		slot := &table.slots[idx]
		if !slot.Occupied() {
			continue
		}
		if !table.isVolatileID(slot.id.ID) {
			continue
		}
		if want := table.volatileIndex(slot.id.ID); want != idx {
			t.Errorf("volatile key 0x%08x at index %d, placement requires %d",
				slot.id.ID, idx, want)
		}
	}
}

func TestIdentifierUniqueness(t *testing.T) {
	table := newTestTable(t, 8)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	seen := make(map[KeyID]bool)
	for i := 0; i < 8; i++ {
		id, err := table.ImportVolatile(0, testMaterial(t, 16))
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("identifier %s assigned twice", id)
		}
		seen[id] = true
	}
}

func TestImportVolatileRejectsEmptyMaterial(t *testing.T) {
	table := newTestTable(t, 4)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	if _, err := table.ImportVolatile(0, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
	stats := table.Stats()
	if stats.EmptySlots != 4 {
		t.Errorf("failed import left %d occupied slots", 4-stats.EmptySlots)
	}
}

func TestImportVolatileRoundTrip(t *testing.T) {
	table := newTestTable(t, 4)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	material := testMaterial(t, 32)
	id, err := table.ImportVolatile(7, material)
	if err != nil {
		t.Fatal(err)
	}
	if id.Owner != 7 {
		t.Errorf("owner = %d, want 7", id.Owner)
	}

	slot, err := table.GetOrLoad(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(slot.Material(), material) {
		t.Error("resident material differs from imported material")
	}
	if slot.Lifetime() != LifetimeVolatile {
		t.Errorf("lifetime = %v, want volatile", slot.Lifetime())
	}
}

func TestWipeAll(t *testing.T) {
	table := newTestTable(t, 4)
	if err := table.Initialize(); err != nil {
		t.Fatal(err)
	}

	id, err := table.ImportVolatile(0, testMaterial(t, 32))
	if err != nil {
		t.Fatal(err)
	}
	slot, err := table.GetOrLoad(id)
	if err != nil {
		t.Fatal(err)
	}
	material := slot.Material()

	table.WipeAll()

	for _, b := range material {
		if b != 0 {
			t.Fatal("key material not zeroed by WipeAll")
		}
	}
	stats := table.Stats()
	if stats.EmptySlots != 4 {
		t.Errorf("stats = %+v, want all slots empty", stats)
	}

	// Teardown leaves the table uninitialized
	if _, err = table.ImportVolatile(0, []byte{1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("import after WipeAll: got %v, want ErrNotInitialized", err)
	}

	// Idempotent
	table.WipeAll()
	if err = table.Initialize(); err != nil {
		t.Fatal(err)
	}
	if _, err = table.ImportVolatile(0, []byte{1}); err != nil {
		t.Errorf("import after re-Initialize: %v", err)
	}
}
