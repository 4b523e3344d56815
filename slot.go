package keyslot

import (
	"fmt"

	"github.com/awnumar/memguard"

	"southwinds.dev/keyslot/se"
)

// Slot is the atomic unit of key storage: one key's identifier, lifetime and
// material. The material is a tagged variant discriminated by the lifetime:
// raw bytes for volatile and persistent keys, a secure element slot number
// for external keys. A slot is occupied iff its identifier is not nil; there
// is no separate occupancy flag.
//
// Slots are owned by their table. References handed out by table operations
// stay valid only under the caller's own serialization of table access and
// must not be retained across table operations.
type Slot struct {
	id       KeyID
	lifetime Lifetime

	// material holds raw key bytes for local lifetimes, seSlot the
	// location reference for external ones. The lifetime discriminates;
	// at most one is ever set.
	material []byte
	seSlot   se.SlotNumber
}

// ID returns the identifier currently bound to the slot, or the nil
// identifier for an empty slot
func (s *Slot) ID() KeyID {
	return s.id
}

// Lifetime returns the lifetime of the key resident in the slot
func (s *Slot) Lifetime() Lifetime {
	return s.lifetime
}

// Occupied reports whether a key is resident in the slot
func (s *Slot) Occupied() bool {
	return !s.id.IsNil()
}

// Material returns the raw key bytes for a local-lifetime slot. The bytes
// are table-owned; callers must not retain or mutate them.
func (s *Slot) Material() []byte {
	return s.material
}

// ExternalRef returns the secure element slot number for an external
// lifetime slot, and whether the slot holds one
func (s *Slot) ExternalRef() (se.SlotNumber, bool) {
	if !s.lifetime.IsExternal() {
		return 0, false
	}
	return s.seSlot, true
}

// bind stamps an identifier and lifetime into the slot, marking it occupied
func (s *Slot) bind(id KeyID, lifetime Lifetime) {
	s.id = id
	s.lifetime = lifetime
}

// installMaterial copies key bytes into the slot. This is the single
// installation path for raw material, shared by freshly imported volatile
// keys and the persistent key loader.
func (s *Slot) installMaterial(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty key material")
	}
	s.material = make([]byte, len(data))
	copy(s.material, data)
	return nil
}

// wipe zeroes all key material bytes, then clears the identifier and resets
// the lifetime. Zeroing happens before the slot is marked empty; a wipe
// cannot fail and always leaves the slot in the valid empty state.
func (s *Slot) wipe() {
	memguard.WipeBytes(s.material)
	s.material = nil
	s.seSlot = 0
	s.lifetime = LifetimeVolatile
	s.id = KeyID{}
}
