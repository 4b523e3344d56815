package keyslot

// Stats is a census of slot occupancy classified by lifetime
type Stats struct {
	// EmptySlots is the number of unoccupied slots
	EmptySlots int

	// VolatileSlots counts resident memory-only keys
	VolatileSlots int

	// PersistentSlots counts resident keys backed by the storage backend
	PersistentSlots int

	// ExternalSlots counts resident secure-element key references
	ExternalSlots int

	// MaxOpenInternalID is the highest numeric identifier among resident
	// persistent keys, zero when none are resident
	MaxOpenInternalID uint32

	// MaxOpenExternalID is the highest numeric identifier among resident
	// external keys, zero when none are resident
	MaxOpenExternalID uint32
}

// Stats scans the whole table once and classifies every occupied slot by
// lifetime. Read-only; cannot fail.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stats Stats
	for idx := range t.slots {
		slot := &t.slots[idx]
		if !slot.Occupied() {
			stats.EmptySlots++
			continue
		}
		switch {
		case slot.lifetime == LifetimeVolatile:
			stats.VolatileSlots++
		case slot.lifetime == LifetimePersistent:
			stats.PersistentSlots++
			if slot.id.ID > stats.MaxOpenInternalID {
				stats.MaxOpenInternalID = slot.id.ID
			}
		default:
			stats.ExternalSlots++
			if slot.id.ID > stats.MaxOpenExternalID {
				stats.MaxOpenExternalID = slot.id.ID
			}
		}
	}
	return stats
}
