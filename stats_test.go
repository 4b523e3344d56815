package keyslot

import (
	"testing"

	"southwinds.dev/keyslot/persist"
)

func TestStatsEmptyTable(t *testing.T) {
	table := newTestTable(t, 6)

	stats := table.Stats()
	want := Stats{EmptySlots: 6}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestStatsCensus(t *testing.T) {
	table, store := newExternalTable(t, 3)

	if _, err := table.ImportVolatile(0, testMaterial(t, 16)); err != nil {
		t.Fatal(err)
	}

	saveRecord(t, store, persist.KeyRef{Owner: 0, ID: 0x11}, LifetimePersistent, testMaterial(t, 32))
	saveRecord(t, store, persist.KeyRef{Owner: 0, ID: 0x22}, LifetimePersistent, testMaterial(t, 32))
	if err := store.Save(persist.KeyRef{Owner: 0, ID: 0x33}, externalRecord(3, 1)); err != nil {
		t.Fatal(err)
	}
	for _, id := range []uint32{0x11, 0x22, 0x33} {
		if _, err := table.GetOrLoad(MakeKeyID(0, id)); err != nil {
			t.Fatalf("load 0x%08x: %v", id, err)
		}
	}

	stats := table.Stats()
	if stats.VolatileSlots != 1 || stats.PersistentSlots != 2 || stats.ExternalSlots != 1 {
		t.Errorf("census = %+v, want 1 volatile, 2 persistent, 1 external", stats)
	}
	if stats.EmptySlots != 0 {
		t.Errorf("empty = %d, want 0", stats.EmptySlots)
	}
	if stats.MaxOpenInternalID != 0x22 {
		t.Errorf("max internal id = 0x%08x, want 0x00000022", stats.MaxOpenInternalID)
	}
	if stats.MaxOpenExternalID != 0x33 {
		t.Errorf("max external id = 0x%08x, want 0x00000033", stats.MaxOpenExternalID)
	}
}

func TestStatsTracksClose(t *testing.T) {
	table, store := newStoredTable(t, 4, "")

	saveRecord(t, store, persist.KeyRef{Owner: 0, ID: 0x11}, LifetimePersistent, testMaterial(t, 32))
	saveRecord(t, store, persist.KeyRef{Owner: 0, ID: 0x22}, LifetimePersistent, testMaterial(t, 32))
	for _, id := range []uint32{0x11, 0x22} {
		if _, err := table.Open(MakeKeyID(0, id)); err != nil {
			t.Fatal(err)
		}
	}

	if stats := table.Stats(); stats.MaxOpenInternalID != 0x22 {
		t.Fatalf("max internal id = 0x%08x, want 0x00000022", stats.MaxOpenInternalID)
	}

	// Closing the highest resident key moves the watermark down
	if err := table.Close(MakeKeyID(0, 0x22)); err != nil {
		t.Fatal(err)
	}
	stats := table.Stats()
	if stats.MaxOpenInternalID != 0x11 {
		t.Errorf("max internal id after close = 0x%08x, want 0x00000011", stats.MaxOpenInternalID)
	}
	if stats.PersistentSlots != 1 || stats.EmptySlots != 3 {
		t.Errorf("stats = %+v, want 1 persistent and 3 empty", stats)
	}
}
