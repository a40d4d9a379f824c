package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(home, ".feedvault", "config.toml"), store.Path())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("test_key", "test_value"))

	val, ok := store.Get("test_key")
	assert.True(t, ok)
	assert.Equal(t, "test_value", val)

	val, ok = store.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("string_key", "hello"))
	require.NoError(t, store.Set("int_key", 42))
	require.NoError(t, store.Set("bool_key", true))
	require.NoError(t, store.Set("float_key", 0.95))

	assert.Equal(t, "hello", store.GetString("string_key"))
	assert.Equal(t, 42, store.GetInt("int_key"))
	assert.True(t, store.GetBool("bool_key"))
	assert.Equal(t, 0.95, store.GetFloat("float_key"))

	// Missing keys fall back to zero values.
	assert.Equal(t, "", store.GetString("nonexistent"))
	assert.Equal(t, 0, store.GetInt("nonexistent"))
	assert.False(t, store.GetBool("nonexistent"))
	assert.Equal(t, 0.0, store.GetFloat("nonexistent"))

	// Wrong types fall back to zero values too.
	assert.Equal(t, "", store.GetString("int_key"))
	assert.Equal(t, 0, store.GetInt("string_key"))
	assert.False(t, store.GetBool("string_key"))
	assert.Equal(t, 0.0, store.GetFloat("string_key"))
}

func TestConfigStore_GetFloat_WholeNumber(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	// TOML parses whole numbers as int64; a threshold set to 1 must
	// still read back as a float.
	store.mu.Lock()
	store.data["threshold"] = int64(1)
	store.mu.Unlock()

	assert.Equal(t, 1.0, store.GetFloat("threshold"))
}

func TestConfigStore_GetInt_Int64Type(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	// TOML integers unmarshal as int64.
	store.mu.Lock()
	store.data["int64_key"] = int64(9999)
	store.mu.Unlock()

	assert.Equal(t, 9999, store.GetInt("int64_key"))
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store1.Set("embedding.model", "all-minilm"))
	require.NoError(t, store1.Set("ingest.max_payload_mb", 100))
	require.NoError(t, store1.Set("ingest.similarity_threshold", 0.95))

	// A new instance loads from the file, with nested tables
	// flattened into dot-notation keys.
	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", store2.GetString("embedding.model"))
	assert.Equal(t, 100, store2.GetInt("ingest.max_payload_mb"))
	assert.Equal(t, 0.95, store2.GetFloat("ingest.similarity_threshold"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte{}, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not toml {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_OverwriteValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("key", "original"))
	require.NoError(t, store.Set("key", "updated"))
	assert.Equal(t, "updated", store.GetString("key"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := "key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetString(key)
			_, _ = store.Get(key)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
