package keyslot

import "errors"

// Error kinds returned by table operations. Failures carry context by
// wrapping one of these sentinels; classify with errors.Is.
var (
	// ErrInvalidHandle indicates a key identifier outside every valid
	// range, or the nil identifier where a real one is required
	ErrInvalidHandle = errors.New("keyslot: invalid key identifier")

	// ErrNotFound indicates a valid identifier that does not resolve to a
	// resident slot or a stored record
	ErrNotFound = errors.New("keyslot: key not found")

	// ErrOutOfSlots indicates that every slot in the table is occupied
	ErrOutOfSlots = errors.New("keyslot: no free key slot")

	// ErrNotInitialized indicates an operation attempted before Initialize
	ErrNotInitialized = errors.New("keyslot: table not initialized")

	// ErrStorageFailure indicates the storage backend could not load or
	// decode a persistent key record
	ErrStorageFailure = errors.New("keyslot: storage failure")

	// ErrInvalidArgument indicates a secure-element lifetime whose
	// location has no registered driver
	ErrInvalidArgument = errors.New("keyslot: invalid argument")

	// ErrNotSupported indicates an operation that requires an absent
	// capability, such as opening persistent keys on a table with no store
	ErrNotSupported = errors.New("keyslot: not supported")
)
