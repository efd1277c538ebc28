// Package sqlite provides an embedded SQLite EntityStore for single-host runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// EntityStore keeps entity rows in a SQLite file, one table per kind.
type EntityStore struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(ctx context.Context, path string) (*EntityStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite has a single writer; one connection keeps pragmas and locks simple.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &EntityStore{db: db, path: path}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *EntityStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite db: %w", err)
	}
	return nil
}

// Ping checks the database file is still reachable.
func (s *EntityStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *EntityStore) Path() string {
	return s.path
}

// Migrate creates the entity tables if they are missing.
func (s *EntityStore) Migrate(ctx context.Context) error {
	for _, kind := range frontier.Kinds() {
		query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	%s INTEGER PRIMARY KEY,
	state INTEGER NOT NULL DEFAULT 0,
	crawled INTEGER NOT NULL DEFAULT 0
)`, kind, kind.KeyField())
		if _, err := s.execWithRetry(ctx, query); err != nil {
			return fmt.Errorf("create %s table: %w", kind, err)
		}
	}
	return nil
}

// Create inserts a NORMAL, not-crawled row unless the id is taken.
func (s *EntityStore) Create(ctx context.Context, kind frontier.Kind, id int64) (frontier.InsertResult, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?) ON CONFLICT(%s) DO NOTHING`,
		kind, kind.KeyField(), kind.KeyField())
	res, err := s.execWithRetry(ctx, query, id)
	if err != nil {
		if isConstraintViolation(err) {
			return frontier.AlreadyExists, nil
		}
		return 0, fmt.Errorf("insert %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert %s rows affected: %w", kind, err)
	}
	if n == 0 {
		return frontier.AlreadyExists, nil
	}
	return frontier.Inserted, nil
}

// UpdateState applies the update with max() so it never regresses a row.
func (s *EntityStore) UpdateState(ctx context.Context, kind frontier.Kind, id int64, update frontier.Update) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	crawled := 0
	if update.MarkCrawled {
		crawled = 1
	}
	query := fmt.Sprintf(`UPDATE %s SET state = MAX(state, ?), crawled = MAX(crawled, ?) WHERE %s = ?`,
		kind, kind.KeyField())
	res, err := s.execWithRetry(ctx, query, int(update.State), crawled, id)
	if err != nil {
		return fmt.Errorf("update %s state: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s rows affected: %w", kind, err)
	}
	if n == 0 {
		return frontier.ErrNotFound
	}
	return nil
}

// Get reads the current row.
func (s *EntityStore) Get(ctx context.Context, kind frontier.Kind, id int64) (frontier.Entity, error) {
	if err := kind.Validate(); err != nil {
		return frontier.Entity{}, err
	}
	query := fmt.Sprintf(`SELECT state, crawled FROM %s WHERE %s = ?`, kind, kind.KeyField())
	var state, crawled int64
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&state, &crawled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return frontier.Entity{}, frontier.ErrNotFound
		}
		return frontier.Entity{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return frontier.Entity{Kind: kind, ID: id, State: frontier.State(state), Crawled: crawled != 0}, nil
}

func (s *EntityStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
