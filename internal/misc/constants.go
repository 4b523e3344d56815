package misc

const (
	// RecordVersion defines the current version of the persisted key record envelope
	RecordVersion = 1

	// ArgonTime Key derivation parameters for store sealing keys
	ArgonTime    uint32 = 4
	ArgonMemory  uint32 = 128 * 1024
	ArgonThreads uint8  = 4
	ArgonKeyLen  uint32 = 32
	SaltSize            = 16

	FilePermissions = 0600 // user read + write
	DirPermissions  = 0700 // user read + write + execute
)
