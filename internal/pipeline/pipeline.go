package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/logging"
)

// Pipeline dispatches items to stages through a capability table.
type Pipeline struct {
	env    Env
	stages []Stage
	table  map[frontier.Capability][]Stage
	logger *zap.Logger
}

// StageFactory builds a stage from the shared env.
type StageFactory func(Env) Stage

// DefaultStages is the seed, movie and actor stage set.
func DefaultStages() []StageFactory {
	return []StageFactory{
		func(e Env) Stage { return NewSeedStage(e) },
		func(e Env) Stage { return NewMovieStage(e) },
		func(e Env) Stage { return NewActorStage(e) },
	}
}

// New validates env and registers the stages produced by factories. With no
// factories the default stage set is used.
func New(env Env, factories ...StageFactory) (*Pipeline, error) {
	env, err := env.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("pipeline env: %w", err)
	}
	if len(factories) == 0 {
		factories = DefaultStages()
	}
	p := &Pipeline{
		env:    env,
		table:  make(map[frontier.Capability][]Stage),
		logger: logging.Named(env.Logger, "pipeline"),
	}
	stageEnv := env
	stageEnv.Logger = p.logger
	for _, factory := range factories {
		stage := factory(stageEnv)
		caps := stage.Capabilities()
		if len(caps) == 0 {
			return nil, fmt.Errorf("stage %s declares no capabilities", stage.Name())
		}
		p.stages = append(p.stages, stage)
		for _, c := range caps {
			p.table[c] = append(p.table[c], stage)
		}
	}
	return p, nil
}

// Env returns the validated env the pipeline runs with.
func (p *Pipeline) Env() Env {
	return p.env
}

// Open prepares the artifact store for every stage that persists artifacts.
// It is idempotent and runs before the first item.
func (p *Pipeline) Open(ctx context.Context) error {
	seen := make(map[frontier.Kind]bool)
	for _, stage := range p.stages {
		as, ok := stage.(artifactStage)
		if !ok {
			continue
		}
		for _, kind := range as.ArtifactKinds() {
			if seen[kind] {
				continue
			}
			seen[kind] = true
			if err := p.env.Artifacts.EnsureUniqueIndex(ctx, kind); err != nil {
				return fmt.Errorf("ensure %s artifact index: %w", kind, err)
			}
		}
	}
	return nil
}

// Process runs item through every stage registered for its capability. A
// drop stops the chain; so does an error, which is returned.
func (p *Pipeline) Process(ctx context.Context, item frontier.Item) (Result, error) {
	stages := p.table[item.Capability]
	if len(stages) == 0 {
		p.logger.Debug("no stage for capability", zap.String("capability", string(item.Capability)))
		return passThrough(item), nil
	}
	if err := item.Validate(); err != nil {
		p.logger.Warn("dropping malformed item", zap.Error(err))
		return Result{Disposition: Dropped, Reason: err.Error(), Item: item}, nil
	}

	out := passThrough(item)
	for _, stage := range stages {
		res, err := p.runStage(ctx, stage, item)
		out.Discovered += res.Discovered
		if err != nil {
			p.env.Metrics.ObserveItem(stage.Name(), "error")
			if !errors.Is(err, context.Canceled) {
				p.logger.Error("stage failed", zap.String("stage", stage.Name()), zap.Error(err))
			}
			return out, err
		}
		p.env.Metrics.ObserveItem(stage.Name(), res.Disposition.String())
		switch res.Disposition {
		case Dropped:
			out.Disposition = Dropped
			out.Reason = res.Reason
			return out, nil
		case Acknowledged:
			out.Disposition = Acknowledged
		}
	}
	return out, nil
}

// runStage wraps one stage call in a span.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, item frontier.Item) (Result, error) {
	ctx, span := p.env.Tracer.Start(ctx, "pipeline."+stage.Name(), trace.WithAttributes(
		attribute.String("frontier.capability", string(item.Capability)),
	))
	defer span.End()

	res, err := stage.Process(ctx, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.String("frontier.disposition", res.Disposition.String()),
		attribute.Int("frontier.discovered", res.Discovered),
	)
	return res, nil
}
