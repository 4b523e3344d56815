package keyslot

import (
	"southwinds.dev/keyslot/audit"
	"southwinds.dev/keyslot/persist"
	"southwinds.dev/keyslot/se"
)

const (
	// DefaultSlotCount is the table capacity used when Options.SlotCount
	// is zero
	DefaultSlotCount = 32

	// maxSlotCount bounds the capacity so the volatile range never eats
	// into the vendor range
	maxSlotCount = 1 << 16
)

// Options configures a Table at construction time. Optional capabilities
// (persistent storage, secure element drivers) are modeled as optional
// fields: a nil Store means persistent keys are
// unsupported and a nil Drivers registry means no external location is ever
// accepted. Operations depending on an absent capability fail
// deterministically instead of being configured away silently.
type Options struct {
	// SlotCount is the fixed table capacity. Zero selects
	// DefaultSlotCount.
	SlotCount int

	// Store is the storage backend for persistent keys. Nil disables
	// persistent key support: Open fails ErrNotSupported and GetOrLoad
	// misses report ErrNotFound without touching storage.
	Store persist.Store

	// Drivers is the secure element driver registry. Nil means every
	// external lifetime is rejected with ErrInvalidArgument.
	Drivers *se.Registry

	// Audit receives one event per lifecycle operation. Nil disables
	// audit logging.
	Audit audit.Logger

	// LockMemory requests that process memory be pinned against swapping
	// before any key material enters the table
	LockMemory bool
}
