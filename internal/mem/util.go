package mem

// ProtectionLevel indicates how well the process can protect key material in memory
type ProtectionLevel int

const (
	ProtectionNone    ProtectionLevel = iota // No memory protection available
	ProtectionPartial                        // Some protection measures applied
	ProtectionFull                           // Full memory protection (locked memory)
)

func (p ProtectionLevel) String() string {
	switch p {
	case ProtectionFull:
		return "full"
	case ProtectionPartial:
		return "partial"
	default:
		return "none"
	}
}

// Lock attempts to prevent key material from being swapped to disk.
// Returns the protection level achieved and any error encountered.
func Lock() (ProtectionLevel, error) {
	return lockMemoryPlatform()
}

// Unlock releases memory locks if they were applied
func Unlock() error {
	return unlockMemoryPlatform()
}
