package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// EntityStore keeps one table per kind (movie, actor) keyed by the external
// id. The primary key is the only arbiter of concurrent creates.
type EntityStore struct {
	pool   pool
	prefix string
}

// NewEntityStore connects a pool and returns a store. Call Migrate before use
// on a fresh database.
func NewEntityStore(ctx context.Context, cfg PoolConfig) (*EntityStore, error) {
	if err := checkPrefix(cfg.TablePrefix); err != nil {
		return nil, err
	}
	p, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &EntityStore{pool: p, prefix: cfg.TablePrefix}, nil
}

// NewEntityStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewEntityStoreWithPool(p pool, prefix string) (*EntityStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if err := checkPrefix(prefix); err != nil {
		return nil, err
	}
	return &EntityStore{pool: p, prefix: prefix}, nil
}

// Close releases the underlying pool resources.
func (s *EntityStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks the pool can reach the server.
func (s *EntityStore) Ping(ctx context.Context) error {
	return ping(ctx, s.pool)
}

func (s *EntityStore) table(kind frontier.Kind) string {
	return s.prefix + string(kind)
}

// Migrate creates the entity tables if they are missing. Safe to run on
// every start.
func (s *EntityStore) Migrate(ctx context.Context) error {
	for _, kind := range frontier.Kinds() {
		query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	%s BIGINT PRIMARY KEY,
	state SMALLINT NOT NULL DEFAULT 0,
	crawled BOOLEAN NOT NULL DEFAULT FALSE
)`, s.table(kind), kind.KeyField())
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("create %s table: %w", kind, err)
		}
	}
	return nil
}

// Create inserts a NORMAL, not-crawled row. Losing the race to another
// writer is reported as AlreadyExists.
func (s *EntityStore) Create(ctx context.Context, kind frontier.Kind, id int64) (frontier.InsertResult, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1) ON CONFLICT (%s) DO NOTHING`,
		s.table(kind), kind.KeyField(), kind.KeyField())
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		if isUniqueViolation(err) {
			return frontier.AlreadyExists, nil
		}
		return 0, fmt.Errorf("insert %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return frontier.AlreadyExists, nil
	}
	return frontier.Inserted, nil
}

// UpdateState applies the update as a single monotonic statement.
func (s *EntityStore) UpdateState(ctx context.Context, kind frontier.Kind, id int64, update frontier.Update) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET state = GREATEST(state, $1), crawled = crawled OR $2 WHERE %s = $3`,
		s.table(kind), kind.KeyField())
	tag, err := s.pool.Exec(ctx, query, int16(update.State), update.MarkCrawled, id)
	if err != nil {
		return fmt.Errorf("update %s state: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return frontier.ErrNotFound
	}
	return nil
}

// Get reads the current row.
func (s *EntityStore) Get(ctx context.Context, kind frontier.Kind, id int64) (frontier.Entity, error) {
	if err := kind.Validate(); err != nil {
		return frontier.Entity{}, err
	}
	query := fmt.Sprintf(`SELECT state, crawled FROM %s WHERE %s = $1`, s.table(kind), kind.KeyField())
	var (
		state   int16
		crawled bool
	)
	if err := s.pool.QueryRow(ctx, query, id).Scan(&state, &crawled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return frontier.Entity{}, frontier.ErrNotFound
		}
		return frontier.Entity{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return frontier.Entity{Kind: kind, ID: id, State: frontier.State(state), Crawled: crawled}, nil
}
