package frontier

import (
	"context"
	"time"
)

// Update is a monotonic write against one entity row. Stores apply it as
// state = max(state, Update.State) and crawled = crawled OR Update.MarkCrawled,
// so concurrent or repeated updates never regress a row.
type Update struct {
	// State is the target state; StateNormal leaves the column untouched.
	State State
	// MarkCrawled sets crawled=true; false leaves the column untouched.
	MarkCrawled bool
}

// IsZero reports whether the update would not change any row.
func (u Update) IsZero() bool {
	return u.State == StateNormal && !u.MarkCrawled
}

// EntityStore persists entity lifecycle rows, one table per kind, keyed by a
// unique id.
type EntityStore interface {
	// Create inserts a NORMAL, not-crawled row. A uniqueness conflict is
	// reported as AlreadyExists, never as an error.
	Create(ctx context.Context, kind Kind, id int64) (InsertResult, error)
	// UpdateState applies a monotonic update. It returns ErrNotFound when no
	// row exists for the id.
	UpdateState(ctx context.Context, kind Kind, id int64, update Update) error
	// Get reads the current row or returns ErrNotFound.
	Get(ctx context.Context, kind Kind, id int64) (Entity, error)
}

// ArtifactStore persists the full payload of a crawled entity at most once.
type ArtifactStore interface {
	// EnsureUniqueIndex creates the uniqueness index for a kind. It is
	// idempotent and must run before any Persist for that kind.
	EnsureUniqueIndex(ctx context.Context, kind Kind) error
	// Persist stores doc under kind/id. A second write for the same id yields
	// DuplicateRejected and leaves the first document in place.
	Persist(ctx context.Context, kind Kind, id int64, doc any) (PersistResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
