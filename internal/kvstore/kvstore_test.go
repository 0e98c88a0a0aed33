package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	fileStore, err := NewFile(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)

	out := map[string]Store{
		BackendMemory: NewMemory(),
		BackendFile:   fileStore,
		BackendSQLite: sqliteStore,
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		redisStore, err := NewRedis(url)
		require.NoError(t, err)
		require.NoError(t, redisStore.Ping(context.Background()))
		t.Cleanup(func() { _ = redisStore.Close() })
		out[BackendRedis] = redisStore
	}
	return out
}

func TestBackends_GetSetDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "kvstore_test_" + name

			_, ok, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, key, "invalid", true))
			got, ok, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "invalid", got)

			require.NoError(t, store.Set(ctx, key, "unlicensed", true))
			got, _, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "unlicensed", got)

			require.NoError(t, store.Delete(ctx, key))
			_, ok, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Delete(ctx, key), "deleting a missing key is not an error")
		})
	}
}

func TestBackends_TransientValuesReadable(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "kvstore_transient_" + name
			t.Cleanup(func() { _ = store.Delete(ctx, key) })

			require.NoError(t, store.Set(ctx, key, "2026-03-10T15:30:00Z", false))
			got, ok, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2026-03-10T15:30:00Z", got)
		})
	}
}

func TestFile_PersistsDurableOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", FileName)

	first, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "state", "invalid", true))
	require.NoError(t, first.Set(ctx, "snooze", "later", false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileFilePerm), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	second, err := NewFile(path)
	require.NoError(t, err)
	got, ok, err := second.Get(ctx, "state")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "invalid", got)

	_, ok, err = second.Get(ctx, "snooze")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	ctx := context.Background()
	store, err := NewFile(path)
	require.NoError(t, err)
	_, _, err = store.Get(ctx, "state")
	assert.Error(t, err)

	require.NoError(t, store.Set(ctx, "state", "invalid", true))
	got, ok, err := store.Get(ctx, "state")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "invalid", got)

	saved, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(saved))
}

func TestFile_DeleteRecoversCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))

	ctx := context.Background()
	store, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "ledger"))
	require.NoError(t, store.Set(ctx, "state", "unlicensed", true))
	got, ok, err := store.Get(ctx, "state")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "unlicensed", got)
}

func TestSQLite_ClosedStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, _, err = store.Get(ctx, "state")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Set(ctx, "state", "invalid", true), ErrStoreClosed)
	assert.ErrorIs(t, store.Delete(ctx, "state"), ErrStoreClosed)
}

func TestFile_RequiresPath(t *testing.T) {
	_, err := NewFile("  ")
	assert.Error(t, err)
}

func TestSQLite_TransientSurvivesReopenUntilExpiry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewSQLite(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "state", "unlicensed", true))
	require.NoError(t, first.Set(ctx, "snooze", "later", false))
	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "double close is safe")

	second, err := NewSQLite(dir)
	require.NoError(t, err)
	defer second.Close()

	got, ok, err := second.Get(ctx, "state")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "unlicensed", got)

	got, ok, err = second.Get(ctx, "snooze")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "later", got)

	second.now = func() time.Time { return time.Now().Add(TransientTTL + time.Hour) }
	_, ok, err = second.Get(ctx, "snooze")
	require.NoError(t, err)
	assert.False(t, ok, "transient value expired")

	_, ok, err = second.Get(ctx, "state")
	require.NoError(t, err)
	assert.True(t, ok, "durable value never expires")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("default is sqlite", func(t *testing.T) {
		store, err := Open(ctx, Options{DataDir: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLite{}, store)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := Open(ctx, Options{Backend: "FILE", DataDir: dir})
		require.NoError(t, err)
		require.IsType(t, &File{}, store)
		assert.Equal(t, filepath.Join(dir, FileName), store.(*File).Path())
	})

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, Options{Backend: BackendMemory})
		require.NoError(t, err)
		assert.IsType(t, &Memory{}, store)
	})

	t.Run("redis requires url", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: BackendRedis})
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: "etcd"})
		assert.Error(t, err)
	})
}

func TestNewRedis_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"http://localhost:6379", "redis://", "::"} {
		_, err := NewRedis(raw)
		assert.Error(t, err, raw)
	}
}
