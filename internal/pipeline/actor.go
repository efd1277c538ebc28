package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/logging"
)

// ActorStage applies actor fetch outcomes. Filmographies arrive in pages; the
// actor is only marked crawled once the last page is in.
type ActorStage struct {
	env Env
}

// NewActorStage constructs an ActorStage from an env validated by New.
func NewActorStage(env Env) *ActorStage {
	env.Logger = logging.Named(env.Logger, "actor")
	return &ActorStage{env: env}
}

// Name implements Stage.
func (*ActorStage) Name() string { return "actor" }

// Capabilities implements Stage.
func (*ActorStage) Capabilities() []frontier.Capability {
	return []frontier.Capability{frontier.CapabilityActor}
}

// Process discovers the filmography and records the lifecycle transition.
func (s *ActorStage) Process(ctx context.Context, item frontier.Item) (Result, error) {
	if !handles(s, item.Capability) || item.Actor == nil {
		return passThrough(item), nil
	}
	o := item.Actor
	subject := frontier.Ref{Kind: frontier.KindActor, ID: o.AID}
	decision := frontier.DecideActor(*o)

	res := Result{Disposition: Acknowledged, Item: item}
	n, err := discover(ctx, s.env, subject, decision.Discover)
	res.Discovered = n
	if err != nil {
		return s.fail(res, err)
	}
	if err := applyUpdate(ctx, s.env, subject, decision.Update); err != nil {
		return s.fail(res, err)
	}

	if decision.Update.State == frontier.StateBroken {
		s.env.Logger.Error("broken actor link", zap.Int64("aid", o.AID))
	} else {
		s.env.Logger.Debug("actor page applied",
			zap.Int64("aid", o.AID),
			zap.Bool("finished", o.Finished),
			zap.Int("discovered", n),
		)
	}
	return res, nil
}

func (s *ActorStage) fail(res Result, err error) (Result, error) {
	s.env.Metrics.ObserveStoreError(s.Name())
	return res, fmt.Errorf("actor %d: %w", res.Item.Actor.AID, err)
}
