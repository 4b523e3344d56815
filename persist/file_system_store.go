package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"southwinds.dev/keyslot/internal/debug"
	"southwinds.dev/keyslot/internal/misc"
)

const (
	FilePermissions os.FileMode = misc.FilePermissions
	DirPermissions  os.FileMode = misc.DirPermissions

	keysDirName  = "keys"
	saltFileName = "sealing.salt"
)

// FileSystemStore implements Store on the local filesystem. Each key record
// is one file under basePath/keys/, written atomically via a temp file plus
// rename so a crashed save never leaves a truncated record behind.
type FileSystemStore struct {
	basePath string
	keysDir  string // basePath/keys/
	saltPath string // basePath/sealing.salt
	sealer   *sealer
}

// NewFileSystemStore initializes a filesystem-backed store rooted at
// basePath. A non-empty passphrase enables at-rest sealing: a store-scoped
// salt is created next to the records on first use and the sealing key is
// derived from it once per store.
func NewFileSystemStore(basePath, passphrase string) (*FileSystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	fs := &FileSystemStore{
		basePath: basePath,
		keysDir:  filepath.Join(basePath, keysDirName),
		saltPath: filepath.Join(basePath, saltFileName),
	}

	if err := os.MkdirAll(fs.keysDir, DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create keys directory: %w", err)
	}

	if passphrase != "" {
		salt, err := fs.loadOrCreateSalt()
		if err != nil {
			return nil, err
		}
		fs.sealer, err = newSealer(passphrase, salt)
		if err != nil {
			return nil, err
		}
	}

	return fs, nil
}

// NewFileSystemStoreFromConfig creates a FileSystemStore from StoreConfig
func NewFileSystemStoreFromConfig(config StoreConfig) (*FileSystemStore, error) {
	basePath, ok := config.Config["base_path"].(string)
	if !ok {
		return nil, fmt.Errorf("base_path is required for filesystem store")
	}
	passphrase, _ := config.Config["passphrase"].(string)

	return NewFileSystemStore(basePath, passphrase)
}

func (fs *FileSystemStore) loadOrCreateSalt() ([]byte, error) {
	salt, err := os.ReadFile(fs.saltPath)
	if err == nil {
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read sealing salt: %w", err)
	}

	salt, err = newSealingSalt()
	if err != nil {
		return nil, err
	}
	if err = writeSecureFile(fs.saltPath, salt, FilePermissions); err != nil {
		return nil, fmt.Errorf("failed to write sealing salt: %w", err)
	}
	return salt, nil
}

func (fs *FileSystemStore) recordPath(ref KeyRef) string {
	return filepath.Join(fs.keysDir, ref.objectName())
}

// Save stores a record, replacing any existing one for the reference
func (fs *FileSystemStore) Save(ref KeyRef, rec *Record) error {
	data, err := encodeRecord(rec, fs.sealer)
	if err != nil {
		return err
	}

	debug.Print("saving key record %s\n", ref)
	return writeSecureFile(fs.recordPath(ref), data, FilePermissions)
}

// Load retrieves the record for a reference
func (fs *FileSystemStore) Load(ref KeyRef) (*Record, error) {
	data, err := os.ReadFile(fs.recordPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read key record %s: %w", ref, err)
	}

	return decodeRecord(data, fs.sealer, ref)
}

// Exists reports whether a record is present for the reference
func (fs *FileSystemStore) Exists(ref KeyRef) (bool, error) {
	_, err := os.Stat(fs.recordPath(ref))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat key record %s: %w", ref, err)
}

// Delete removes the record for a reference
func (fs *FileSystemStore) Delete(ref KeyRef) error {
	err := os.Remove(fs.recordPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete key record %s: %w", ref, err)
	}
	return nil
}

// List returns the references of all stored records, sorted by object name
func (fs *FileSystemStore) List() ([]KeyRef, error) {
	entries, err := os.ReadDir(fs.keysDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []KeyRef{}, nil
		}
		return nil, fmt.Errorf("failed to read keys directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	refs := make([]KeyRef, 0, len(names))
	for _, name := range names {
		if ref, ok := parseObjectName(name); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Ping verifies the base path is accessible
func (fs *FileSystemStore) Ping() error {
	if _, err := os.Stat(fs.basePath); err != nil {
		return fmt.Errorf("store path not accessible: %w", err)
	}
	return nil
}

// Close releases store resources; the filesystem store holds none
func (fs *FileSystemStore) Close() error {
	return nil
}

// GetType retrieves the type of store being used
func (fs *FileSystemStore) GetType() string {
	return string(StoreTypeFileSystem)
}

// writeSecureFile writes data atomically: temp file, sync, chmod, rename
func writeSecureFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	return nil
}
