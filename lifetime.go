package keyslot

import (
	"fmt"

	"southwinds.dev/keyslot/se"
)

// Lifetime classifies a key's persistence and location. The low 8 bits hold
// the persistence class; the upper 24 bits hold the secure element location.
// A lifetime with a non-local location is external: its slot stores a
// location reference instead of raw key material.
type Lifetime uint32

const (
	// LifetimeVolatile is a memory-only key living for the process lifetime
	LifetimeVolatile Lifetime = 0

	// LifetimePersistent is a key stored in the storage backend and loaded
	// on demand
	LifetimePersistent Lifetime = 1
)

// MakeLifetime combines a persistence class with a secure element location
func MakeLifetime(persistence uint8, loc se.Location) Lifetime {
	return Lifetime(uint32(persistence) | uint32(loc)<<8)
}

// Persistence returns the persistence class bits
func (l Lifetime) Persistence() uint8 {
	return uint8(l & 0xff)
}

// Location returns the secure element location bits
func (l Lifetime) Location() se.Location {
	return se.Location(uint32(l) >> 8)
}

// IsExternal reports whether the key material lives on a secure element
func (l Lifetime) IsExternal() bool {
	return l.Location() != se.LocationLocal
}

func (l Lifetime) String() string {
	persistence := "vendor"
	switch Lifetime(l.Persistence()) {
	case LifetimeVolatile:
		persistence = "volatile"
	case LifetimePersistent:
		persistence = "persistent"
	}
	if l.IsExternal() {
		return fmt.Sprintf("%s@se:%d", persistence, l.Location())
	}
	return persistence
}
