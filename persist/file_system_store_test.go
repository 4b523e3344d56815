package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemStore(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "")
	require.NoError(t, err)

	testStoreImplementation(t, store)
}

func TestFileSystemStoreSealed(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "test-passphrase")
	require.NoError(t, err)

	testStoreImplementation(t, store)
}

func TestFileSystemStoreRejectsEmptyBasePath(t *testing.T) {
	_, err := NewFileSystemStore("", "")
	assert.Error(t, err)
}

func TestFileSystemStoreSealingAtRest(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSystemStore(dir, "test-passphrase")
	require.NoError(t, err)
	defer store.Close()

	ref := KeyRef{Owner: 1, ID: 7}
	material := []byte("super-secret-material")
	require.NoError(t, store.Save(ref, &Record{Lifetime: 1, Material: material}))

	// The on-disk record must not contain the material or any envelope text
	raw, err := os.ReadFile(store.recordPath(ref))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret-material")
	assert.NotContains(t, string(raw), "checksum")

	// The salt lives next to the records, not among them
	_, err = os.Stat(filepath.Join(dir, saltFileName))
	assert.NoError(t, err, "Sealing salt should be created on first use")
}

func TestFileSystemStoreSaltReuseAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileSystemStore(dir, "test-passphrase")
	require.NoError(t, err)
	ref := KeyRef{Owner: 1, ID: 7}
	material := []byte("persistent-material")
	require.NoError(t, first.Save(ref, &Record{Lifetime: 1, Material: material}))
	require.NoError(t, first.Close())

	// A second store over the same path derives the same sealing key
	second, err := NewFileSystemStore(dir, "test-passphrase")
	require.NoError(t, err)
	defer second.Close()

	loaded, err := second.Load(ref)
	require.NoError(t, err)
	assert.Equal(t, material, loaded.Material)
}

func TestFileSystemStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()

	writer, err := NewFileSystemStore(dir, "correct-passphrase")
	require.NoError(t, err)
	ref := KeyRef{Owner: 1, ID: 7}
	require.NoError(t, writer.Save(ref, &Record{Lifetime: 1, Material: []byte("material")}))
	require.NoError(t, writer.Close())

	reader, err := NewFileSystemStore(dir, "wrong-passphrase")
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Load(ref)
	assert.Error(t, err, "Unsealing with the wrong passphrase must fail")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileSystemStoreListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSystemStore(dir, "")
	require.NoError(t, err)
	defer store.Close()

	ref := KeyRef{Owner: 1, ID: 7}
	require.NoError(t, store.Save(ref, &Record{Lifetime: 1, Material: []byte("material")}))

	// Stray files in the keys directory must not surface as records
	require.NoError(t, os.WriteFile(filepath.Join(dir, keysDirName, "README"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, keysDirName, "bad-name.key"), []byte("x"), 0o600))

	refs, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []KeyRef{ref}, refs)
}

func TestFileSystemStoreRecordPermissions(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "")
	require.NoError(t, err)
	defer store.Close()

	ref := KeyRef{Owner: 1, ID: 7}
	require.NoError(t, store.Save(ref, &Record{Lifetime: 1, Material: []byte("material")}))

	info, err := os.Stat(store.recordPath(ref))
	require.NoError(t, err)
	assert.Equal(t, FilePermissions, info.Mode().Perm())
}

func TestNewFileSystemStoreFromConfig(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileSystemStoreFromConfig(StoreConfig{
		Type: StoreTypeFileSystem,
		Config: map[string]interface{}{
			"base_path":  dir,
			"passphrase": "test-passphrase",
		},
	})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, string(StoreTypeFileSystem), store.GetType())

	_, err = NewFileSystemStoreFromConfig(StoreConfig{
		Type:   StoreTypeFileSystem,
		Config: map[string]interface{}{},
	})
	assert.Error(t, err, "Missing base_path should be rejected")
}

func TestNewStoreFactory(t *testing.T) {
	store, err := NewStore(StoreConfig{
		Type:   StoreTypeFileSystem,
		Config: map[string]interface{}{"base_path": t.TempDir()},
	})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, string(StoreTypeFileSystem), store.GetType())

	_, err = NewStore(StoreConfig{Type: "bogus"})
	assert.Error(t, err)
}
