package pipeline

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/clock/system"
	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/logging"
	"github.com/JakeFAU/movie-frontier/internal/metrics"
)

const tracerName = "github.com/JakeFAU/movie-frontier/internal/pipeline"

// Env carries everything a run shares between stages. One Env is built per
// process (or per test) and handed to every stage constructor.
type Env struct {
	Entities  frontier.EntityStore
	Artifacts frontier.ArtifactStore
	// Guard defaults to a guard over Entities.
	Guard   *frontier.Guard
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	Clock   frontier.Clock
	// Tracer defaults to the global provider's pipeline tracer.
	Tracer trace.Tracer
	// DiscoveryParallelism bounds concurrent inserts per outcome.
	DiscoveryParallelism int
}

// withDefaults validates the env and fills optional members.
func (e Env) withDefaults() (Env, error) {
	if e.Entities == nil {
		return Env{}, errors.New("entity store is required")
	}
	if e.Artifacts == nil {
		return Env{}, errors.New("artifact store is required")
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.Clock == nil {
		e.Clock = system.New()
	}
	if e.Tracer == nil {
		e.Tracer = otel.Tracer(tracerName)
	}
	if e.Guard == nil {
		e.Guard = frontier.NewGuard(e.Entities, e.DiscoveryParallelism, logging.Named(e.Logger, "guard"))
	}
	return e, nil
}
