package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

func newMockEntityStore(t *testing.T) (*EntityStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewEntityStoreWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestEntityStoreCreateInserted(t *testing.T) {
	t.Parallel()

	store, mock := newMockEntityStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO movie (mid) VALUES ($1) ON CONFLICT (mid) DO NOTHING`)).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := store.Create(context.Background(), frontier.KindMovie, 42)
	require.NoError(t, err)
	require.Equal(t, frontier.Inserted, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityStoreCreateConflictIsAlreadyExists(t *testing.T) {
	t.Parallel()

	store, mock := newMockEntityStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO actor (aid)`)).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO actor (aid)`)).
		WithArgs(int64(7)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "actor_pkey"})

	res, err := store.Create(context.Background(), frontier.KindActor, 7)
	require.NoError(t, err)
	require.Equal(t, frontier.AlreadyExists, res)

	res, err = store.Create(context.Background(), frontier.KindActor, 7)
	require.NoError(t, err)
	require.Equal(t, frontier.AlreadyExists, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityStoreCreateInfrastructureError(t *testing.T) {
	t.Parallel()

	store, mock := newMockEntityStore(t)
	mock.ExpectExec("INSERT INTO movie").
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection refused"))

	_, err := store.Create(context.Background(), frontier.KindMovie, 1)
	require.ErrorContains(t, err, "insert movie")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityStoreUpdateStateIsMonotonic(t *testing.T) {
	t.Parallel()

	store, mock := newMockEntityStore(t)
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE movie SET state = GREATEST(state, $1), crawled = crawled OR $2 WHERE mid = $3`)).
		WithArgs(int16(frontier.StateBroken), true, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateState(context.Background(), frontier.KindMovie, 5,
		frontier.Update{State: frontier.StateBroken, MarkCrawled: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityStoreUpdateStateMissingRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockEntityStore(t)
	mock.ExpectExec("UPDATE actor").
		WithArgs(int16(frontier.StateNormal), true, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateState(context.Background(), frontier.KindActor, 9, frontier.Update{MarkCrawled: true})
	require.ErrorIs(t, err, frontier.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityStoreGet(t *testing.T) {
	t.Parallel()

	store, mock := newMockEntityStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state, crawled FROM movie WHERE mid = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"state", "crawled"}).AddRow(int16(1), false))
	mock.ExpectQuery("SELECT state, crawled FROM movie").
		WithArgs(int64(6)).
		WillReturnError(pgx.ErrNoRows)

	got, err := store.Get(context.Background(), frontier.KindMovie, 5)
	require.NoError(t, err)
	require.Equal(t, frontier.Entity{Kind: frontier.KindMovie, ID: 5, State: frontier.StateNeedsAuth}, got)

	_, err = store.Get(context.Background(), frontier.KindMovie, 6)
	require.ErrorIs(t, err, frontier.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityStoreMigrateCreatesTablePerKind(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewEntityStoreWithPool(mock, "crawl_")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS crawl_movie")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS crawl_actor")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEntityStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewEntityStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewEntityStoreWithPool(mock, "bad-prefix;")
	require.ErrorContains(t, err, "invalid table prefix")
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, isUniqueViolation(errors.New("ERROR: duplicate key (SQLSTATE 23505)")))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(nil))
}

func TestEntityStorePingWrapsErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewEntityStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = store.Ping(context.Background())
	require.EqualError(t, err, "ping postgres: connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}
