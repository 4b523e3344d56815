// Package persist defines the storage backend consumed by the key slot table.
// A Store holds serialized key records addressed by key reference; the table
// treats the material bytes as opaque. Records can optionally be sealed at
// rest with a passphrase-derived key; sealing is a property of the store, not
// of the table.
package persist

import (
	"errors"
	"fmt"
	"time"
)

// KeyRef addresses a persisted key record: the owner context plus the numeric
// key identifier. The zero value is never a valid reference.
type KeyRef struct {
	Owner int32  `json:"owner"`
	ID    uint32 `json:"id"`
}

func (r KeyRef) String() string {
	return fmt.Sprintf("%d/0x%08x", r.Owner, r.ID)
}

// objectName is the canonical file/object name for a key record.
// Both backends share it so records move between stores unchanged.
func (r KeyRef) objectName() string {
	return fmt.Sprintf("%08x-%08x.key", uint32(r.Owner), r.ID)
}

// Record is the serialized form of a persisted key: its lifetime attribute
// plus the material bytes. For secure-element keys the material is the
// fixed-size location-reference record, not raw key bytes; the store does
// not distinguish the two.
type Record struct {
	// Version of the record envelope, for forward compatibility
	Version int `json:"version"`

	// Lifetime attribute of the key as stored by the table
	Lifetime uint32 `json:"lifetime"`

	// Material holds the opaque key bytes
	Material []byte `json:"material"`

	// Checksum is the SHA-256 of Material, verified on load
	Checksum string `json:"checksum"`

	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned when no record exists for the requested reference
var ErrNotFound = errors.New("persist: key not found")

// IntegrityError reports a checksum mismatch on a loaded record
type IntegrityError struct {
	Ref      KeyRef
	Expected string
	Actual   string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("integrity failure loading %s: expected checksum %s, got %s",
		e.Ref, e.Expected, e.Actual)
}

// Store defines the interface for persisting key records. All methods are
// synchronous; the table blocks on them for the duration of a load.
type Store interface {

	// Save stores a record under the given reference, replacing any
	// existing record for it.
	Save(ref KeyRef, rec *Record) error

	// Load retrieves the record for a reference. Returns ErrNotFound if no
	// record exists, or an IntegrityError if the record fails verification.
	Load(ref KeyRef) (*Record, error)

	// Exists reports whether a record is present for the reference
	Exists(ref KeyRef) (bool, error)

	// Delete removes the record for a reference. Deleting a reference that
	// has no record returns ErrNotFound.
	Delete(ref KeyRef) error

	// List returns the references of all stored records
	List() ([]KeyRef, error)

	// Ping tests connectivity for remote backends
	Ping() error

	// Close closes the store and releases any resources it holds
	Close() error

	// GetType retrieves the type of store being used
	GetType() string
}

// StoreType represents the different types of storage backends that can be used
type StoreType string

// Supported storage types.
const (
	// StoreTypeFileSystem indicates that the local file system should be used for storage
	StoreTypeFileSystem StoreType = "filesystem"

	// StoreTypeS3 indicates that an S3-compatible object store should be used
	StoreTypeS3 StoreType = "s3"
)

// StoreConfig provides configuration for different storage backends.
// Type selects the backend; Config carries backend-specific settings.
// A "passphrase" entry, if present, enables at-rest sealing of records.
type StoreConfig struct {
	Type   StoreType              `json:"type"`
	Config map[string]interface{} `json:"config"`
}
