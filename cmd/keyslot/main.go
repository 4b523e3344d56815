package main

import (
	"github.com/awnumar/memguard"

	"southwinds.dev/keyslot/cli/cmd"
)

func main() {
	// Wipe guarded memory on interrupt before the process dies
	memguard.CatchInterrupt()
	defer memguard.Purge()

	cmd.Execute()
}
