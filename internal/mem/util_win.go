//go:build windows

package mem

func lockMemoryPlatform() (ProtectionLevel, error) {
	// VirtualLock has per-process quota limitations; rely on wiping instead
	return ProtectionPartial, nil
}

func unlockMemoryPlatform() error {
	return nil
}
