package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridfront/grid-front/internal/config"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "tok-1"))
	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing an empty store is fine
	assert.NoError(t, store.Clear(ctx))
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "tok-file"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-file", token)

	// A second save replaces the first
	require.NoError(t, store.Save(ctx, "tok-file-2"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-file-2", token)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Clear(ctx))
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	store := NewFileStore(path)
	_, err := store.Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "tok-redis"))
	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-redis", token)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.TokenStoreConfig{Kind: config.TokenStoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = New(ctx, config.TokenStoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = New(ctx, config.TokenStoreConfig{Kind: config.TokenStoreFile, Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = New(ctx, config.TokenStoreConfig{Kind: "etcd"})
	assert.Error(t, err)
}

func TestShimTracksCurrentToken(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	shim := NewShim(backend)

	assert.Empty(t, shim.Current())

	shim.Save(ctx, "tok-a")
	assert.Equal(t, "tok-a", shim.Current())

	persisted, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-a", persisted)

	shim.Clear(ctx)
	assert.Empty(t, shim.Current())
	_, err = backend.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShimLoadPopulatesCurrent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	require.NoError(t, backend.Save(ctx, "persisted"))

	shim := NewShim(backend)
	token, err := shim.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)
	assert.Equal(t, "persisted", shim.Current())
}

func TestShimLoadEmptyBackend(t *testing.T) {
	shim := NewShim(NewMemoryStore())

	_, err := shim.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, shim.Current())
}

type failingStore struct{}

func (failingStore) Load(context.Context) (string, error) { return "", assert.AnError }
func (failingStore) Save(context.Context, string) error   { return assert.AnError }
func (failingStore) Clear(context.Context) error          { return assert.AnError }

func TestShimKeepsWorkingWhenBackendFails(t *testing.T) {
	ctx := context.Background()
	shim := NewShim(failingStore{})

	// Persistence failures are logged, not surfaced; the in-memory
	// token still serves the session
	shim.Save(ctx, "tok")
	assert.Equal(t, "tok", shim.Current())

	shim.Clear(ctx)
	assert.Empty(t, shim.Current())
}
