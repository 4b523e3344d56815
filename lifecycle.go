package keyslot

import (
	"errors"
)

// Handle names a key that resolved to a resident slot at the time it was
// opened. Handles and identifiers share representation: a handle is simply
// a validated identifier, not proof of continued residency.
type Handle = KeyID

// GetOrLoad resolves an identifier to its slot, loading the key from the
// storage backend if it is not already resident. A miss with no storage
// backend configured reports ErrNotFound without attempting allocation. A
// load failure wipes the reserved slot before the error is returned, so a
// failed load never leaves a half-populated slot behind.
func (t *Table) GetOrLoad(key KeyID) (*Slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.getOrLoad(key)
}

// getOrLoad implements GetOrLoad. Callers hold t.mu.
func (t *Table) getOrLoad(key KeyID) (*Slot, error) {
	if !t.initialized {
		return nil, ErrNotInitialized
	}

	slot, err := t.search(key)
	if !errors.Is(err, ErrNotFound) {
		// Resident, or the identifier itself is invalid
		return slot, err
	}

	if t.store == nil {
		return nil, err
	}

	slot, _, err = t.allocate()
	if err != nil {
		return nil, err
	}

	// Provisional binding; the stored record's lifetime replaces this
	// once loaded
	slot.bind(key, LifetimePersistent)

	if err = t.loadIntoSlot(slot); err != nil {
		slot.wipe()
		t.logEvent("key.load", key, err)
		return nil, err
	}

	t.logEvent("key.load", key, nil)
	return slot, nil
}

// Open resolves an identifier, loading it from storage if needed, and
// returns it as a handle. Requires a storage backend; a table without one
// fails ErrNotSupported regardless of the identifier.
func (t *Table) Open(key KeyID) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store == nil {
		return KeyID{}, ErrNotSupported
	}

	if _, err := t.getOrLoad(key); err != nil {
		t.logEvent("key.open", key, err)
		return KeyID{}, err
	}

	t.logEvent("key.open", key, nil)
	return key, nil
}

// Close frees the slot holding the key named by the handle, wiping its
// material. Closing the nil handle is a no-op success; a handle that no
// longer resolves fails ErrNotFound or ErrInvalidHandle.
func (t *Table) Close(handle Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if handle.IsNil() {
		return nil
	}

	slot, err := t.search(handle)
	if err != nil {
		t.logEvent("key.close", handle, err)
		return err
	}

	slot.wipe()
	t.logEvent("key.close", handle, nil)
	return nil
}

// Purge removes a persisted key's copy from memory, wiping its slot. A
// volatile key is already ephemeral, so purging one is deliberately a no-op
// success: the slot stays occupied and unchanged. Note this conflates
// "purged" with "nothing needed purging"; callers that care must check the
// lifetime first.
func (t *Table) Purge(key KeyID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, err := t.search(key)
	if err != nil {
		t.logEvent("key.purge", key, err)
		return err
	}

	if slot.lifetime == LifetimeVolatile {
		t.logEvent("key.purge", key, nil)
		return nil
	}

	slot.wipe()
	t.logEvent("key.purge", key, nil)
	return nil
}
