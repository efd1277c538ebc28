// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/api"
	"github.com/JakeFAU/movie-frontier/internal/config"
	"github.com/JakeFAU/movie-frontier/internal/dispatcher"
	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/logging"
	"github.com/JakeFAU/movie-frontier/internal/metrics"
	"github.com/JakeFAU/movie-frontier/internal/pipeline"
	"github.com/JakeFAU/movie-frontier/internal/queue"
	queuememory "github.com/JakeFAU/movie-frontier/internal/queue/memory"
	queuepubsub "github.com/JakeFAU/movie-frontier/internal/queue/pubsub"
	"github.com/JakeFAU/movie-frontier/internal/storage/gcs"
	"github.com/JakeFAU/movie-frontier/internal/storage/local"
	storememory "github.com/JakeFAU/movie-frontier/internal/storage/memory"
	"github.com/JakeFAU/movie-frontier/internal/storage/mongo"
	"github.com/JakeFAU/movie-frontier/internal/storage/postgres"
	"github.com/JakeFAU/movie-frontier/internal/storage/sqlite"
	"github.com/JakeFAU/movie-frontier/internal/telemetry"
	"github.com/JakeFAU/movie-frontier/internal/worker"
)

const closeTimeout = 10 * time.Second

// pinger is implemented by stores that can report connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// App holds all the shared, long-lived services for the application.
// It is built once at startup from a validated Config and torn down with Close.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Entities   frontier.EntityStore
	Artifacts  frontier.ArtifactStore
	Queue      queue.Queue
	Registry   *prometheus.Registry
	Metrics    *metrics.Recorder
	Pipeline   *pipeline.Pipeline
	Dispatcher *dispatcher.Dispatcher

	closers []closer
}

// Option customizes App construction.
type Option func(*App)

// WithLogger replaces the logger built from the logging config.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.Logger = logger }
}

// New creates and initializes an App from cfg. It fails fast if any backing
// service cannot be reached; services opened before the failure are closed.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		logger, err := logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, err
		}
		a.Logger = logger
	}
	if err := a.build(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("cleanup after failed init", zap.Error(closeErr))
		}
		return nil, err
	}
	a.Logger.Info("application services initialized",
		zap.String("entity_store", cfg.EntityStore.Driver),
		zap.String("artifact_store", cfg.ArtifactStore.Driver),
		zap.String("queue", cfg.Queue.Driver),
		zap.Int("workers", a.Dispatcher.Size()),
	)
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	shutdown, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: "frontier",
		Exporter:    a.Config.Tracing.Exporter,
		Endpoint:    a.Config.Tracing.Endpoint,
		Insecure:    a.Config.Tracing.Insecure,
		SampleRatio: a.Config.Tracing.SampleRatio,
	}, logging.Named(a.Logger, "telemetry"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.onClose("tracer provider", shutdown)

	if a.Entities, err = a.openEntities(ctx); err != nil {
		return err
	}
	if a.Artifacts, err = a.openArtifacts(ctx); err != nil {
		return err
	}
	if a.Queue, err = a.openQueue(ctx); err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	if err := a.Registry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("register go collector: %w", err)
	}
	if a.Metrics, err = metrics.New(a.Registry); err != nil {
		return err
	}

	a.Pipeline, err = pipeline.New(pipeline.Env{
		Entities:             a.Entities,
		Artifacts:            a.Artifacts,
		Logger:               a.Logger,
		Metrics:              a.Metrics,
		DiscoveryParallelism: a.Config.Pipeline.DiscoveryParallelism,
	}, pipeline.DefaultStages()...)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	if err := a.Pipeline.Open(ctx); err != nil {
		return fmt.Errorf("open pipeline: %w", err)
	}

	a.Dispatcher = dispatcher.NewPool(a.Queue, a.Pipeline, a.Config.Pipeline.Workers, worker.Config{
		ItemTimeout: a.Config.ItemTimeout(),
	}, logging.Named(a.Logger, "worker"))
	return nil
}

func (a *App) openEntities(ctx context.Context) (frontier.EntityStore, error) {
	cfg := a.Config.EntityStore
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewEntityStore(ctx, postgres.PoolConfig{
			DSN:         cfg.DSN,
			TablePrefix: cfg.TablePrefix,
			MaxConns:    cfg.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres entity store: %w", err)
		}
		a.onClose("postgres entity store", func(context.Context) error { store.Close(); return nil })
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate entity store: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite entity store: %w", err)
		}
		a.onClose("sqlite entity store", func(context.Context) error { return store.Close() })
		return store, nil
	default:
		return storememory.NewEntityStore(), nil
	}
}

func (a *App) openArtifacts(ctx context.Context) (frontier.ArtifactStore, error) {
	cfg := a.Config.ArtifactStore
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewArtifactStore(ctx, postgres.PoolConfig{
			DSN:         a.Config.ArtifactDSN(),
			TablePrefix: cfg.TablePrefix,
			MaxConns:    a.Config.EntityStore.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres artifact store: %w", err)
		}
		a.onClose("postgres artifact store", func(context.Context) error { store.Close(); return nil })
		return store, nil
	case config.DriverMongo:
		store, err := mongo.New(ctx, mongo.Config{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("open mongo artifact store: %w", err)
		}
		a.onClose("mongo artifact store", store.Close)
		return store, nil
	case config.DriverGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose("gcs client", func(context.Context) error { return client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("open gcs artifact store: %w", err)
		}
		return store, nil
	case config.DriverFile:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("open file artifact store: %w", err)
		}
		return store, nil
	default:
		return storememory.NewArtifactStore(), nil
	}
}

func (a *App) openQueue(ctx context.Context) (queue.Queue, error) {
	cfg := a.Config.Queue
	var q queue.Queue
	switch cfg.Driver {
	case config.DriverPubSub:
		ps, err := queuepubsub.New(ctx, queuepubsub.Config{
			ProjectID:      cfg.ProjectID,
			Topic:          cfg.Topic,
			Subscription:   cfg.Subscription,
			MaxOutstanding: cfg.MaxOutstanding,
		}, logging.Named(a.Logger, "queue"))
		if err != nil {
			return nil, fmt.Errorf("open pubsub queue: %w", err)
		}
		q = ps
	default:
		q = queuememory.NewQueue(a.Config.Pipeline.QueueDepth)
	}
	a.onClose("queue", func(context.Context) error { return q.Close() })
	return q, nil
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Server builds the HTTP API over the app's stores and dispatcher.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Entities, a.Dispatcher, a.Config, a.Metrics, logging.Named(a.Logger, "api"),
		api.WithReadiness(a.Ready))
}

// Ready reports whether every store that can be pinged is reachable.
func (a *App) Ready(ctx context.Context) error {
	for _, dep := range []any{a.Entities, a.Artifacts} {
		if p, ok := dep.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close shuts down services in reverse order of creation. It keeps going
// after a failure and returns every error it saw.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.Logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
