// Package keyslot maintains an in-memory table of cryptographic key slots.
// The table is the single point of truth for which keys are currently
// resident in the process: it resolves key identifiers to slots, loads
// persistent keys from a pluggable storage backend on demand, validates
// secure element locations against a driver registry, and guarantees that
// freed key material is zeroed before a slot is reused.
//
// Every public operation runs under one exclusive lock held for the whole
// logical operation, not just for the individual scans. The allocator hands
// out a reserved slot that is not yet marked occupied, so a finer-grained
// locking scheme would let a second operation observe the reservation window;
// the single lock is a design constraint, not an optimization shortcut.
package keyslot

import (
	"fmt"
	"sync"

	"southwinds.dev/keyslot/audit"
	"southwinds.dev/keyslot/internal/debug"
	"southwinds.dev/keyslot/internal/mem"
	"southwinds.dev/keyslot/persist"
	"southwinds.dev/keyslot/se"
)

// Table is a fixed-capacity array of key slots with explicit init and
// teardown. A process typically holds a single table for its lifetime, but
// nothing in the design requires a global: construct one, Initialize it,
// and pass it to whoever resolves keys.
type Table struct {
	mu          sync.Mutex
	slots       []Slot
	initialized bool

	// volatileMin is the lower bound of the volatile identifier range for
	// this capacity; the volatile key at identifier id lives at slot
	// index id - volatileMin
	volatileMin uint32

	store    persist.Store
	drivers  *se.Registry
	auditLog audit.Logger

	protection mem.ProtectionLevel
}

// NewTable constructs a table from the given options. The table starts
// uninitialized; every operation except Initialize fails ErrNotInitialized
// until Initialize is called.
func NewTable(opts Options) (*Table, error) {
	count := opts.SlotCount
	if count == 0 {
		count = DefaultSlotCount
	}
	if count < 0 || count > maxSlotCount {
		return nil, fmt.Errorf("%w: slot count %d out of range [1,%d]",
			ErrInvalidArgument, count, maxSlotCount)
	}

	auditLog := opts.Audit
	if auditLog == nil {
		auditLog = audit.NewNoOpLogger()
	}

	t := &Table{
		slots:       make([]Slot, count),
		volatileMin: VendorMax - uint32(count) + 1,
		store:       opts.Store,
		drivers:     opts.Drivers,
		auditLog:    auditLog,
	}

	if opts.LockMemory {
		level, err := mem.Lock()
		if err != nil {
			return nil, fmt.Errorf("failed to lock memory: %w", err)
		}
		t.protection = level
	}

	return t, nil
}

// Capacity returns the fixed number of slots in the table
func (t *Table) Capacity() int {
	return len(t.slots)
}

// VolatileMin returns the smallest volatile identifier for this table's
// capacity. The volatile range runs from VolatileMin to VendorMax inclusive.
func (t *Table) VolatileMin() uint32 {
	return t.volatileMin
}

// MemoryProtection reports the memory protection level achieved when the
// table was constructed with Options.LockMemory
func (t *Table) MemoryProtection() mem.ProtectionLevel {
	return t.protection
}

// Initialize marks the table ready for use. A zero-valued table is already a
// valid empty state, so no slot is mutated; only the readiness flag flips.
// Must be called before any other operation.
func (t *Table) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.initialized = true
	return nil
}

// WipeAll wipes every slot unconditionally and marks the table
// uninitialized. Idempotent; safe to call during teardown regardless of the
// table's state.
func (t *Table) WipeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for idx := range t.slots {
		t.slots[idx].wipe()
	}
	t.initialized = false

	debug.Print("wiped all %d key slots\n", len(t.slots))
	t.logEvent("table.wipe_all", KeyID{}, nil)
}

// search resolves an identifier to its slot. Volatile identifiers map to a
// fixed index, checked directly; persistent and vendor identifiers are found
// by scanning from the highest index down, the same order the allocator
// uses. Read-only: no allocation, no storage access. Callers hold t.mu.
func (t *Table) search(key KeyID) (*Slot, error) {
	if err := t.ValidateID(key, true, true); err != nil {
		return nil, err
	}

	if t.isVolatileID(key.ID) {
		slot := &t.slots[t.volatileIndex(key.ID)]
		if slot.id != key {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return slot, nil
	}

	for idx := len(t.slots) - 1; idx >= 0; idx-- {
		if t.slots[idx].id == key {
			return &t.slots[idx], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// allocate finds the first unoccupied slot, scanning from the highest index
// down, and synthesizes the volatile identifier fixed to that index. The
// slot is not marked occupied; the caller binds an identifier into it or
// abandons the reservation before releasing the lock. No mutation occurs on
// failure. Callers hold t.mu.
func (t *Table) allocate() (*Slot, KeyID, error) {
	if !t.initialized {
		return nil, KeyID{}, ErrNotInitialized
	}

	for idx := len(t.slots) - 1; idx >= 0; idx-- {
		slot := &t.slots[idx]
		if !slot.Occupied() {
			volatileID := KeyID{ID: t.volatileMin + uint32(idx)}
			return slot, volatileID, nil
		}
	}
	return nil, KeyID{}, ErrOutOfSlots
}

// ImportVolatile reserves a free slot, installs a private copy of the
// material and binds a fresh volatile identifier to it. The returned
// identifier resolves to the key until it is closed or the table is wiped.
func (t *Table) ImportVolatile(owner int32, material []byte) (KeyID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, volatileID, err := t.allocate()
	if err != nil {
		t.logEvent("key.import", KeyID{}, err)
		return KeyID{}, err
	}
	volatileID.Owner = owner

	if err = slot.installMaterial(material); err != nil {
		slot.wipe()
		t.logEvent("key.import", volatileID, err)
		return KeyID{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	slot.bind(volatileID, LifetimeVolatile)

	t.logEvent("key.import", volatileID, nil)
	return volatileID, nil
}

// logEvent records a lifecycle event; audit failures never fail the
// operation itself
func (t *Table) logEvent(action string, key KeyID, opErr error) {
	metadata := make(map[string]interface{})
	if !key.IsNil() {
		metadata["key_id"] = key.String()
	}
	if opErr != nil {
		metadata["error"] = opErr.Error()
	}
	_ = t.auditLog.Log(action, opErr == nil, metadata)
}
