package mongo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// fakeCollection enforces uniqueness on the indexed field like the server does.
type fakeCollection struct {
	mu         sync.Mutex
	indexed    map[string]bool
	indexCalls int
	indexErr   error
	docs       map[int64]bson.M
	field      string
	err        error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{indexed: map[string]bool{}, docs: map[int64]bson.M{}}
}

func (c *fakeCollection) createUniqueIndex(_ context.Context, field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexCalls++
	if c.indexErr != nil {
		return c.indexErr
	}
	c.indexed[field] = true
	c.field = field
	return nil
}

func (c *fakeCollection) insert(_ context.Context, doc bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	id, _ := doc[c.field].(int64)
	if _, exists := c.docs[id]; exists {
		return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	}
	c.docs[id] = doc
	return nil
}

func newTestStore(coll *fakeCollection) *ArtifactStore {
	return &ArtifactStore{collections: func(frontier.Kind) collection { return coll }}
}

func TestPersistDuplicateKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	coll := newFakeCollection()
	store := newTestStore(coll)
	ctx := context.Background()
	require.NoError(t, store.EnsureUniqueIndex(ctx, frontier.KindMovie))
	require.True(t, coll.indexed["mid"])

	first := frontier.MoviePayload{Title: "Chungking Express", Rating: 8.7}.Artifact(1291999, time.Unix(0, 0))
	second := frontier.MoviePayload{Title: "Fallen Angels"}.Artifact(1291999, time.Unix(0, 0))

	res, err := store.Persist(ctx, frontier.KindMovie, 1291999, first)
	require.NoError(t, err)
	require.Equal(t, frontier.Stored, res.Status)

	res, err = store.Persist(ctx, frontier.KindMovie, 1291999, second)
	require.NoError(t, err)
	require.Equal(t, frontier.DuplicateRejected, res.Status)
	require.Contains(t, res.Reason, "mongo")

	require.Len(t, coll.docs, 1)
	require.Equal(t, "Chungking Express", coll.docs[1291999]["title"])
}

func TestEnsureUniqueIndexPerKind(t *testing.T) {
	t.Parallel()

	movies, actors := newFakeCollection(), newFakeCollection()
	store := &ArtifactStore{collections: func(kind frontier.Kind) collection {
		if kind == frontier.KindActor {
			return actors
		}
		return movies
	}}
	ctx := context.Background()

	for range 2 {
		require.NoError(t, store.EnsureUniqueIndex(ctx, frontier.KindMovie))
		require.NoError(t, store.EnsureUniqueIndex(ctx, frontier.KindActor))
	}
	require.Equal(t, map[string]bool{"mid": true}, movies.indexed)
	require.Equal(t, map[string]bool{"aid": true}, actors.indexed)
	require.Equal(t, 2, movies.indexCalls)
	require.Equal(t, 2, actors.indexCalls)

	res, err := store.Persist(ctx, frontier.KindActor, 1054424, map[string]any{"name": "Tony Leung"})
	require.NoError(t, err)
	require.Equal(t, frontier.Stored, res.Status)
	require.Len(t, actors.docs, 1)
	require.Empty(t, movies.docs)

	require.ErrorIs(t, store.EnsureUniqueIndex(ctx, frontier.Kind("studio")), frontier.ErrUnknownKind)
}

func TestEnsureUniqueIndexWrapsErrors(t *testing.T) {
	t.Parallel()

	coll := newFakeCollection()
	coll.indexErr = errors.New("not primary")
	store := newTestStore(coll)

	err := store.EnsureUniqueIndex(context.Background(), frontier.KindMovie)
	require.EqualError(t, err, "create movie unique index: not primary")
}

func TestPersistWrapsOtherErrors(t *testing.T) {
	t.Parallel()

	coll := newFakeCollection()
	coll.field = "mid"
	coll.err = errors.New("server selection timeout")
	store := newTestStore(coll)

	_, err := store.Persist(context.Background(), frontier.KindMovie, 1, map[string]any{"title": "x"})
	require.ErrorContains(t, err, "insert movie artifact")
}

func TestWithKeyOverridesIDField(t *testing.T) {
	t.Parallel()

	m, err := withKey(map[string]any{"aid": int64(1), "name": "Tony Leung"}, "aid", 1054424)
	require.NoError(t, err)
	require.Equal(t, int64(1054424), m["aid"])
	require.Equal(t, "Tony Leung", m["name"])
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "mongo uri is required")
	_, err = New(context.Background(), Config{URI: "mongodb://localhost:27017"})
	require.ErrorContains(t, err, "mongo database is required")
}
