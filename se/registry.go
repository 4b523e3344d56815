// Package se defines the secure element driver registry consumed by the key
// slot table. A secure element holds key material outside process memory;
// the table only ever stores a location reference to it. Registering a driver
// declares that a location value is backed by real hardware or firmware; the
// table uses the registry purely to validate locations, it never invokes
// cryptographic operations on a driver.
package se

import (
	"fmt"
	"sort"
	"sync"
)

// Location identifies where key material lives. LocationLocal means process
// memory; every other value names a secure element and must have a driver
// registered before keys for it are accepted.
type Location uint32

// LocationLocal is the implicit location of volatile and persistent keys
const LocationLocal Location = 0

// SlotNumber is a key slot index inside a secure element. It is opaque to the
// table; only the driver can interpret it.
type SlotNumber uint64

// Driver describes a registered secure element. Implementations live outside
// this module; the table only needs enough surface to validate a location.
type Driver interface {
	// Name returns a human-readable driver name for diagnostics
	Name() string

	// SlotCount returns the number of key slots the element exposes
	SlotCount() uint64
}

// Registry maps locations to registered secure element drivers.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[Location]Driver
}

// NewRegistry creates an empty driver registry
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[Location]Driver)}
}

// Register binds a driver to a location. Registering LocationLocal or a
// location that already has a driver is an error; a location is never
// re-bound while keys may reference it.
func (r *Registry) Register(loc Location, drv Driver) error {
	if loc == LocationLocal {
		return fmt.Errorf("se: cannot register a driver for the local location")
	}
	if drv == nil {
		return fmt.Errorf("se: nil driver for location %d", loc)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.drivers[loc]; ok {
		return fmt.Errorf("se: location %d already registered to driver %q", loc, existing.Name())
	}
	r.drivers[loc] = drv
	return nil
}

// Lookup returns the driver registered for a location, if any
func (r *Registry) Lookup(loc Location) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drv, ok := r.drivers[loc]
	return drv, ok
}

// Locations returns the registered locations in ascending order
func (r *Registry) Locations() []Location {
	r.mu.RLock()
	defer r.mu.RUnlock()

	locs := make([]Location, 0, len(r.drivers))
	for loc := range r.drivers {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	return locs
}
