package keyslot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"southwinds.dev/keyslot/persist"
	"southwinds.dev/keyslot/se"
)

// externalRecordSize is the exact serialized size of a secure element
// location reference. A stored record for an external key must decode to
// precisely this many bytes.
const externalRecordSize = 8

// loadIntoSlot populates a reserved slot from the storage backend. The slot
// must already be bound to the target identifier. The stored lifetime
// attribute replaces the provisional one stamped by the caller; external
// records decode to a location reference, everything else installs raw
// material through the same path used for imported volatile keys. The
// fetched buffer is wiped on every exit path.
//
// On failure the slot is left partially populated; the caller wipes it.
// Fetching bytes and managing the slot lifecycle stay separate concerns.
func (t *Table) loadIntoSlot(slot *Slot) error {
	rec, err := t.store.Load(persist.KeyRef{Owner: slot.id.Owner, ID: slot.id.ID})
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, slot.id)
		}
		return fmt.Errorf("%w: loading %s: %v", ErrStorageFailure, slot.id, err)
	}
	defer memguard.WipeBytes(rec.Material)

	lifetime := Lifetime(rec.Lifetime)
	slot.lifetime = lifetime

	if lifetime.IsExternal() {
		if err = t.ValidateLocation(lifetime); err != nil {
			return err
		}
		if len(rec.Material) != externalRecordSize {
			return fmt.Errorf("%w: malformed secure element reference for %s: %d bytes",
				ErrStorageFailure, slot.id, len(rec.Material))
		}
		slot.seSlot = se.SlotNumber(binary.LittleEndian.Uint64(rec.Material))
		return nil
	}

	if err = slot.installMaterial(rec.Material); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorageFailure, slot.id, err)
	}
	return nil
}

// ValidateLocation checks that a lifetime's location is acceptable: local
// lifetimes always are, external ones only when a driver is registered for
// the location. Fails ErrInvalidArgument otherwise.
func (t *Table) ValidateLocation(lifetime Lifetime) error {
	if !lifetime.IsExternal() {
		return nil
	}

	if t.drivers == nil {
		return fmt.Errorf("%w: no secure element drivers registered", ErrInvalidArgument)
	}
	if _, ok := t.drivers.Lookup(lifetime.Location()); !ok {
		return fmt.Errorf("%w: no driver registered for location %d",
			ErrInvalidArgument, lifetime.Location())
	}
	return nil
}

// ValidatePersistence checks that a lifetime's persistence class is usable
// on this table. Volatile keys are always supported; persistent keys
// require a configured storage backend and fail ErrNotSupported without
// one.
func (t *Table) ValidatePersistence(lifetime Lifetime) error {
	if Lifetime(lifetime.Persistence()) == LifetimeVolatile {
		return nil
	}
	if t.store == nil {
		return fmt.Errorf("%w: no storage backend configured", ErrNotSupported)
	}
	return nil
}
