package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// Disposition tells the caller what happened to an item.
type Disposition int

// Item dispositions.
const (
	// PassThrough means no stage handled the item.
	PassThrough Disposition = iota
	// Acknowledged means the item was fully applied.
	Acknowledged
	// Dropped means the item was intentionally discarded; Reason says why.
	Dropped
)

func (d Disposition) String() string {
	switch d {
	case PassThrough:
		return "pass_through"
	case Acknowledged:
		return "acknowledged"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Result is what a stage (or the whole pipeline) did with one item.
type Result struct {
	Disposition Disposition
	Reason      string
	// Discovered counts entity rows created while handling the item.
	Discovered int
	Item       frontier.Item
}

// Stage handles the items of the capabilities it declares. Process returns
// an error only when a store is unavailable.
type Stage interface {
	Name() string
	Capabilities() []frontier.Capability
	Process(ctx context.Context, item frontier.Item) (Result, error)
}

// artifactStage is implemented by stages that persist artifacts, so the
// pipeline can prepare indexes before the first write.
type artifactStage interface {
	ArtifactKinds() []frontier.Kind
}

func handles(s Stage, c frontier.Capability) bool {
	return slices.Contains(s.Capabilities(), c)
}

func passThrough(item frontier.Item) Result {
	return Result{Disposition: PassThrough, Item: item}
}

// discover inserts refs grouped by kind so discoveries are counted per kind.
func discover(ctx context.Context, env Env, source frontier.Ref, refs []frontier.Ref) (int, error) {
	total := 0
	for _, kind := range frontier.Kinds() {
		var group []frontier.Ref
		for _, r := range refs {
			if r.Kind == kind {
				group = append(group, r)
			}
		}
		if len(group) == 0 {
			continue
		}
		n, err := env.Guard.Discover(ctx, source, group)
		env.Metrics.ObserveDiscovered(string(kind), n)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// applyUpdate writes u to the subject row, creating the row first when the
// outcome arrived for an id that was never seeded or discovered.
func applyUpdate(ctx context.Context, env Env, subject frontier.Ref, u frontier.Update) error {
	if u.IsZero() {
		return nil
	}
	err := env.Entities.UpdateState(ctx, subject.Kind, subject.ID, u)
	if errors.Is(err, frontier.ErrNotFound) {
		res, insertErr := env.Guard.InsertIfAbsent(ctx, subject.Kind, subject.ID)
		if insertErr != nil {
			return insertErr
		}
		if res == frontier.Inserted {
			env.Logger.Info("created entity for unseen outcome", zap.Stringer("entity", subject))
		}
		err = env.Entities.UpdateState(ctx, subject.Kind, subject.ID, u)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", subject, err)
	}
	env.Metrics.ObserveTransition(string(subject.Kind), u.State.String())
	return nil
}

// persist stores doc and converts a duplicate into a drop on res.
func persist(
	ctx context.Context,
	env Env,
	subject frontier.Ref,
	doc any,
	res *Result,
) error {
	pr, err := env.Artifacts.Persist(ctx, subject.Kind, subject.ID, doc)
	if err != nil {
		return fmt.Errorf("persist %s: %w", subject, err)
	}
	env.Metrics.ObserveArtifact(string(subject.Kind), pr.Status.String())
	if pr.Status == frontier.DuplicateRejected {
		env.Logger.Warn("dropping duplicate artifact",
			zap.Stringer("entity", subject),
			zap.String("reason", pr.Reason),
		)
		res.Disposition = Dropped
		res.Reason = pr.Reason
	}
	return nil
}
