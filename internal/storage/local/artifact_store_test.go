// Package local_test tests the filesystem artifact store.
package local_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "artifacts")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.EqualError(t, err, "base directory is required")
	})
	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.EqualError(t, err, "base directory path is not a directory")
	})
}

func newStore(t *testing.T) *local.ArtifactStore {
	t.Helper()
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, store.EnsureUniqueIndex(context.Background(), frontier.KindMovie))
	return store
}

func TestPersistKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	res, err := store.Persist(ctx, frontier.KindMovie, 1292052, map[string]string{"title": "first"})
	require.NoError(t, err)
	require.Equal(t, frontier.Stored, res.Status)

	res, err = store.Persist(ctx, frontier.KindMovie, 1292052, map[string]string{"title": "second"})
	require.NoError(t, err)
	require.Equal(t, frontier.DuplicateRejected, res.Status)
	require.Equal(t, "file: duplicate artifact for movie 1292052", res.Reason)

	data, err := store.Lookup(frontier.KindMovie, 1292052)
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"first"}`, string(data))
	require.Equal(t, "1292052.json", filepath.Base(store.Path(frontier.KindMovie, 1292052)))

	entries, err := os.ReadDir(filepath.Dir(store.Path(frontier.KindMovie, 1292052)))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
}

func TestPersistConcurrentWritesStoreOnce(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[frontier.PersistStatus]int{}
	)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Persist(context.Background(), frontier.KindMovie, 7, map[string]int{"writer": i})
			assert.NoError(t, err)
			mu.Lock()
			results[res.Status]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, results[frontier.Stored])
	require.Equal(t, 7, results[frontier.DuplicateRejected])
}

func TestPersistRequiresIndex(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.Persist(context.Background(), frontier.KindActor, 1, map[string]int{})
	require.True(t, errors.Is(err, frontier.ErrIndexMissing), "got %v", err)

	_, err = store.Persist(context.Background(), frontier.Kind("director"), 1, map[string]int{})
	require.True(t, errors.Is(err, frontier.ErrUnknownKind), "got %v", err)
}

func TestLookupMissing(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.Lookup(frontier.KindMovie, 404)
	require.ErrorIs(t, err, frontier.ErrNotFound)
}
