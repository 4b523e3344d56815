package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"southwinds.dev/keyslot/internal/crypto"
	"southwinds.dev/keyslot/internal/misc"
	"southwinds.dev/keyslot/persist"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Work with persisted key records",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted key records",
	RunE:  runKeysList,
}

var keysShowCmd = &cobra.Command{
	Use:   "show <owner> <id>",
	Short: "Show a key record's metadata (never its material)",
	Args:  cobra.ExactArgs(2),
	RunE:  runKeysShow,
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <owner> <id>",
	Short: "Delete a persisted key record",
	Args:  cobra.ExactArgs(2),
	RunE:  runKeysDelete,
}

var keysExportCmd = &cobra.Command{
	Use:   "export <owner> <id> <file>",
	Short: "Export a key record sealed under a fresh passphrase",
	Long: `Export reads a key record from the store and writes it to a file
encrypted with the passphrase given via --export-passphrase (or the
KEYSLOT_EXPORT_PASSPHRASE env var). The output is base64 text.`,
	Args: cobra.ExactArgs(3),
	RunE: runKeysExport,
}

var exportPassphrase string

func init() {
	keysExportCmd.Flags().StringVar(&exportPassphrase, "export-passphrase", "", "passphrase protecting the exported record")

	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysShowCmd)
	keysCmd.AddCommand(keysDeleteCmd)
	keysCmd.AddCommand(keysExportCmd)
	rootCmd.AddCommand(keysCmd)
}

// parseKeyRef parses owner and id command arguments; the id accepts decimal
// or 0x-prefixed hex
func parseKeyRef(ownerArg, idArg string) (persist.KeyRef, error) {
	owner, err := strconv.ParseInt(ownerArg, 0, 32)
	if err != nil {
		return persist.KeyRef{}, fmt.Errorf("invalid owner %q: %w", ownerArg, err)
	}
	id, err := strconv.ParseUint(idArg, 0, 32)
	if err != nil {
		return persist.KeyRef{}, fmt.Errorf("invalid key id %q: %w", idArg, err)
	}
	return persist.KeyRef{Owner: int32(owner), ID: uint32(id)}, nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	refs, err := store.List()
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Println("no key records")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tID")
	for _, ref := range refs {
		fmt.Fprintf(w, "%d\t0x%08x\n", ref.Owner, ref.ID)
	}
	return w.Flush()
}

func runKeysShow(cmd *cobra.Command, args []string) error {
	ref, err := parseKeyRef(args[0], args[1])
	if err != nil {
		return err
	}

	rec, err := store.Load(ref)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(rec.Material)

	fmt.Printf("key:        %s\n", ref)
	fmt.Printf("lifetime:   0x%08x\n", rec.Lifetime)
	fmt.Printf("material:   %d bytes\n", len(rec.Material))
	fmt.Printf("checksum:   %s\n", rec.Checksum)
	fmt.Printf("created at: %s\n", rec.CreatedAt)
	return nil
}

func runKeysDelete(cmd *cobra.Command, args []string) error {
	ref, err := parseKeyRef(args[0], args[1])
	if err != nil {
		return err
	}

	if err = store.Delete(ref); err != nil {
		return err
	}
	fmt.Printf("deleted key record %s\n", ref)
	return nil
}

func runKeysExport(cmd *cobra.Command, args []string) error {
	ref, err := parseKeyRef(args[0], args[1])
	if err != nil {
		return err
	}

	if exportPassphrase == "" {
		exportPassphrase = os.Getenv("KEYSLOT_EXPORT_PASSPHRASE")
	}
	if exportPassphrase == "" {
		return fmt.Errorf("an export passphrase is required")
	}

	rec, err := store.Load(ref)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(rec.Material)

	sealed, err := crypto.EncryptWithPassphrase(rec.Material, exportPassphrase)
	if err != nil {
		return fmt.Errorf("failed to seal exported record: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(sealed)
	if err = os.WriteFile(args[2], []byte(encoded), misc.FilePermissions); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	fmt.Printf("exported key record %s to %s\n", ref, args[2])
	return nil
}
