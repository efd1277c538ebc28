package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// ArtifactStore keeps artifacts as JSONB documents, one table per kind, with
// a unique index on the id column.
type ArtifactStore struct {
	pool   pool
	prefix string
}

// NewArtifactStore connects a pool and returns a store.
func NewArtifactStore(ctx context.Context, cfg PoolConfig) (*ArtifactStore, error) {
	if err := checkPrefix(cfg.TablePrefix); err != nil {
		return nil, err
	}
	p, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &ArtifactStore{pool: p, prefix: cfg.TablePrefix}, nil
}

// NewArtifactStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArtifactStoreWithPool(p pool, prefix string) (*ArtifactStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if err := checkPrefix(prefix); err != nil {
		return nil, err
	}
	return &ArtifactStore{pool: p, prefix: prefix}, nil
}

// Close releases the underlying pool resources.
func (s *ArtifactStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks the pool can reach the server.
func (s *ArtifactStore) Ping(ctx context.Context) error {
	return ping(ctx, s.pool)
}

func (s *ArtifactStore) table(kind frontier.Kind) string {
	return s.prefix + string(kind) + "_artifacts"
}

// EnsureUniqueIndex creates the artifact table and its unique index if they
// are missing.
func (s *ArtifactStore) EnsureUniqueIndex(ctx context.Context, kind frontier.Kind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	table := s.table(kind)
	key := kind.KeyField()
	create := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	%s BIGINT NOT NULL,
	doc JSONB NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table, key)
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	index := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_%s_key ON %s (%s)`, table, key, table, key)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("create %s unique index: %w", table, err)
	}
	return nil
}

// Persist inserts doc for kind/id. An existing row wins; the new document is
// dropped.
func (s *ArtifactStore) Persist(
	ctx context.Context,
	kind frontier.Kind,
	id int64,
	doc any,
) (frontier.PersistResult, error) {
	if err := kind.Validate(); err != nil {
		return frontier.PersistResult{}, err
	}
	data, err := frontier.EncodeArtifact(doc)
	if err != nil {
		return frontier.PersistResult{}, err
	}
	key := kind.KeyField()
	query := fmt.Sprintf(`INSERT INTO %s (%s, doc) VALUES ($1, $2) ON CONFLICT (%s) DO NOTHING`,
		s.table(kind), key, key)
	tag, err := s.pool.Exec(ctx, query, id, data)
	if err != nil {
		if isUniqueViolation(err) {
			return frontier.DuplicateResult(kind, id, "postgres"), nil
		}
		return frontier.PersistResult{}, fmt.Errorf("insert %s artifact: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return frontier.DuplicateResult(kind, id, "postgres"), nil
	}
	return frontier.StoredResult(), nil
}

// Lookup returns the stored document for kind/id.
func (s *ArtifactStore) Lookup(ctx context.Context, kind frontier.Kind, id int64) ([]byte, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s = $1`, s.table(kind), kind.KeyField())
	var doc []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, frontier.ErrNotFound
		}
		return nil, fmt.Errorf("get %s artifact: %w", kind, err)
	}
	return doc, nil
}
