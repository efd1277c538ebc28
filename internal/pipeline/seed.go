package pipeline

import (
	"context"
	"fmt"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/logging"
)

// SeedStage bootstraps the frontier from an external list of movie ids.
type SeedStage struct {
	env Env
}

// NewSeedStage constructs a SeedStage from an env validated by New.
func NewSeedStage(env Env) *SeedStage {
	env.Logger = logging.Named(env.Logger, "seed")
	return &SeedStage{env: env}
}

// Name implements Stage.
func (*SeedStage) Name() string { return "seed" }

// Capabilities implements Stage.
func (*SeedStage) Capabilities() []frontier.Capability {
	return []frontier.Capability{frontier.CapabilitySeed}
}

// Process inserts every seed id as a movie. Existing ids are left alone.
func (s *SeedStage) Process(ctx context.Context, item frontier.Item) (Result, error) {
	if !handles(s, item.Capability) || item.Seed == nil {
		return passThrough(item), nil
	}
	refs := make([]frontier.Ref, 0, len(item.Seed.IDs))
	for _, id := range item.Seed.IDs {
		refs = append(refs, frontier.Ref{Kind: frontier.KindMovie, ID: id})
	}
	n, err := discover(ctx, s.env, frontier.Ref{Kind: "seed"}, refs)
	if err != nil {
		s.env.Metrics.ObserveStoreError(s.Name())
		return Result{}, fmt.Errorf("seed movies: %w", err)
	}
	return Result{Disposition: Acknowledged, Discovered: n, Item: item}, nil
}
