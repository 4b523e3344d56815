//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package mem

func lockMemoryPlatform() (ProtectionLevel, error) {
	// No way to pin pages here; wiping on wipe paths is the only measure
	return ProtectionPartial, nil
}

func unlockMemoryPlatform() error {
	return nil
}
