package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

func TestArtifactStoreEnsureUniqueIndex(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewArtifactStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS movie_artifacts")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta(
		"CREATE UNIQUE INDEX IF NOT EXISTS movie_artifacts_mid_key ON movie_artifacts (mid)")).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	require.NoError(t, store.EnsureUniqueIndex(context.Background(), frontier.KindMovie))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactStorePersistStoredThenDuplicate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewArtifactStoreWithPool(mock, "")
	require.NoError(t, err)

	doc := frontier.MoviePayload{Title: "Yi Yi"}.Artifact(42, time.Unix(1700000000, 0))
	insert := regexp.QuoteMeta(`INSERT INTO movie_artifacts (mid, doc) VALUES ($1, $2) ON CONFLICT (mid) DO NOTHING`)
	mock.ExpectExec(insert).
		WithArgs(int64(42), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insert).
		WithArgs(int64(42), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(insert).
		WithArgs(int64(42), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	res, err := store.Persist(context.Background(), frontier.KindMovie, 42, doc)
	require.NoError(t, err)
	require.Equal(t, frontier.Stored, res.Status)

	for range 2 {
		res, err = store.Persist(context.Background(), frontier.KindMovie, 42, doc)
		require.NoError(t, err)
		require.Equal(t, frontier.DuplicateRejected, res.Status)
		require.Contains(t, res.Reason, "duplicate artifact for movie 42")
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactStoreLookup(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewArtifactStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc FROM movie_artifacts WHERE mid = $1`)).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow([]byte(`{"mid":3}`)))

	doc, err := store.Lookup(context.Background(), frontier.KindMovie, 3)
	require.NoError(t, err)
	require.JSONEq(t, `{"mid":3}`, string(doc))
	require.NoError(t, mock.ExpectationsWereMet())
}
