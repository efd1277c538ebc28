package frontier

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultDiscoveryParallelism = 8

// Guard makes insert-if-absent an explicit operation on top of an
// EntityStore. The store's uniqueness constraint decides every race.
type Guard struct {
	store       EntityStore
	logger      *zap.Logger
	parallelism int
}

// NewGuard wraps store. parallelism bounds concurrent inserts in Discover.
func NewGuard(store EntityStore, parallelism int, logger *zap.Logger) *Guard {
	if parallelism <= 0 {
		parallelism = defaultDiscoveryParallelism
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{store: store, logger: logger, parallelism: parallelism}
}

// InsertIfAbsent creates the row for kind/id unless it exists. Concurrent
// callers for the same id all succeed; exactly one sees Inserted.
func (g *Guard) InsertIfAbsent(ctx context.Context, kind Kind, id int64) (InsertResult, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	res, err := g.store.Create(ctx, kind, id)
	if err != nil {
		return 0, fmt.Errorf("create %s %d: %w", kind, id, err)
	}
	return res, nil
}

// Discover inserts every reference found in source's payload and returns how
// many rows were new. Duplicate refs are collapsed; ids <= 0 are ignored.
func (g *Guard) Discover(ctx context.Context, source Ref, refs []Ref) (int, error) {
	unique := dedupeRefs(refs)
	if len(unique) == 0 {
		return 0, nil
	}
	var inserted atomic.Int64
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(g.parallelism)
	for _, ref := range unique {
		grp.Go(func() error {
			res, err := g.InsertIfAbsent(grpCtx, ref.Kind, ref.ID)
			if err != nil {
				return err
			}
			if res == Inserted {
				inserted.Add(1)
				g.logger.Info("discovered new entity",
					zap.String("kind", string(ref.Kind)),
					zap.Int64("id", ref.ID),
					zap.String("from", source.String()),
				)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return int(inserted.Load()), fmt.Errorf("discover from %s: %w", source, err)
	}
	return int(inserted.Load()), nil
}

func dedupeRefs(refs []Ref) []Ref {
	seen := make(map[Ref]struct{}, len(refs))
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		if r.ID <= 0 {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
