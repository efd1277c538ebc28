package frontier_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/storage/memory"
)

func TestInsertIfAbsentConcurrent(t *testing.T) {
	t.Parallel()

	store := memory.NewEntityStore()
	guard := frontier.NewGuard(store, 4, nil)

	const callers = 32
	results := make(chan frontier.InsertResult, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := guard.InsertIfAbsent(context.Background(), frontier.KindMovie, 42)
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	inserted := 0
	for res := range results {
		if res == frontier.Inserted {
			inserted++
		}
	}
	require.Equal(t, 1, inserted)
	require.Equal(t, 1, store.Count(frontier.KindMovie))

	e, err := store.Get(context.Background(), frontier.KindMovie, 42)
	require.NoError(t, err)
	require.Equal(t, frontier.StateNormal, e.State)
	require.False(t, e.Crawled)
}

func TestInsertIfAbsentRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	guard := frontier.NewGuard(memory.NewEntityStore(), 0, nil)
	_, err := guard.InsertIfAbsent(context.Background(), frontier.Kind("director"), 1)
	require.ErrorIs(t, err, frontier.ErrUnknownKind)
}

func TestDiscoverDedupesAndCounts(t *testing.T) {
	t.Parallel()

	store := memory.NewEntityStore()
	core, logs := observer.New(zap.InfoLevel)
	guard := frontier.NewGuard(store, 2, zap.New(core))
	ctx := context.Background()

	_, err := guard.InsertIfAbsent(ctx, frontier.KindActor, 1)
	require.NoError(t, err)

	source := frontier.Ref{Kind: frontier.KindMovie, ID: 100}
	n, err := guard.Discover(ctx, source, []frontier.Ref{
		{Kind: frontier.KindActor, ID: 1},
		{Kind: frontier.KindActor, ID: 2},
		{Kind: frontier.KindActor, ID: 2},
		{Kind: frontier.KindActor, ID: 0},
		{Kind: frontier.KindMovie, ID: 2},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, store.Count(frontier.KindActor))
	require.Equal(t, 1, store.Count(frontier.KindMovie))

	entries := logs.FilterMessage("discovered new entity").All()
	require.Len(t, entries, 2)
	require.Equal(t, "movie:100", entries[0].ContextMap()["from"])

	n, err = guard.Discover(ctx, source, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

type failingStore struct {
	frontier.EntityStore
	err error
}

func (f failingStore) Create(context.Context, frontier.Kind, int64) (frontier.InsertResult, error) {
	return 0, f.err
}

func TestDiscoverPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	guard := frontier.NewGuard(failingStore{err: boom}, 1, nil)
	_, err := guard.Discover(context.Background(),
		frontier.Ref{Kind: frontier.KindActor, ID: 7},
		[]frontier.Ref{{Kind: frontier.KindMovie, ID: 10}},
	)
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "discover from actor:7")
}
