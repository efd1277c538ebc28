package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/logging"
)

// MovieStage applies movie fetch outcomes from both the anonymous and the
// authenticated producers.
type MovieStage struct {
	env Env
}

// NewMovieStage constructs a MovieStage from an env validated by New.
func NewMovieStage(env Env) *MovieStage {
	env.Logger = logging.Named(env.Logger, "movie")
	return &MovieStage{env: env}
}

// Name implements Stage.
func (*MovieStage) Name() string { return "movie" }

// Capabilities implements Stage.
func (*MovieStage) Capabilities() []frontier.Capability {
	return []frontier.Capability{frontier.CapabilityMovie, frontier.CapabilityMovieAuth}
}

// ArtifactKinds lists the artifact collections this stage writes.
func (*MovieStage) ArtifactKinds() []frontier.Kind {
	return []frontier.Kind{frontier.KindMovie}
}

// Process discovers the movie's people and recommendations, persists the
// artifact once, then records the lifecycle transition.
func (s *MovieStage) Process(ctx context.Context, item frontier.Item) (Result, error) {
	if !handles(s, item.Capability) || item.Movie == nil {
		return passThrough(item), nil
	}
	o := item.Movie
	subject := frontier.Ref{Kind: frontier.KindMovie, ID: o.MID}
	decision := frontier.DecideMovie(*o)

	res := Result{Disposition: Acknowledged, Item: item}
	n, err := discover(ctx, s.env, subject, decision.Discover)
	res.Discovered = n
	if err != nil {
		return s.fail(res, err)
	}
	if decision.PersistArtifact {
		if err := persist(ctx, s.env, subject, o.Payload.Artifact(o.MID, s.env.Clock.Now()), &res); err != nil {
			return s.fail(res, err)
		}
	}
	if err := applyUpdate(ctx, s.env, subject, decision.Update); err != nil {
		return s.fail(res, err)
	}

	switch decision.Update.State {
	case frontier.StateBroken:
		s.env.Logger.Error("broken movie link", zap.Int64("mid", o.MID))
	case frontier.StateNeedsAuth:
		s.env.Logger.Warn("movie requires login", zap.Int64("mid", o.MID))
	default:
		s.env.Logger.Debug("movie crawled", zap.Int64("mid", o.MID), zap.Int("discovered", n))
	}
	return res, nil
}

func (s *MovieStage) fail(res Result, err error) (Result, error) {
	s.env.Metrics.ObserveStoreError(s.Name())
	return res, fmt.Errorf("movie %d: %w", res.Item.Movie.MID, err)
}
