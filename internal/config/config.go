// Package config loads and validates frontier configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store and queue drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverGCS      = "gcs"
	DriverFile     = "file"
	DriverPubSub   = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	EntityStore   EntityStoreConfig   `mapstructure:"entity_store"`
	ArtifactStore ArtifactStoreConfig `mapstructure:"artifact_store"`
	Queue         QueueConfig         `mapstructure:"queue"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// RateLimitRPS caps /v1 requests per client; 0 disables the limit.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TracingConfig selects the OpenTelemetry trace exporter.
type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// PipelineConfig governs the worker pool and discovery fan-out.
type PipelineConfig struct {
	Workers              int `mapstructure:"workers"`
	QueueDepth           int `mapstructure:"queue_depth"`
	DiscoveryParallelism int `mapstructure:"discovery_parallelism"`
	ItemTimeoutSeconds   int `mapstructure:"item_timeout_seconds"`
}

// EntityStoreConfig selects where lifecycle rows live.
type EntityStoreConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	TablePrefix string `mapstructure:"table_prefix"`
	MaxConns    int32  `mapstructure:"max_conns"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// ArtifactStoreConfig selects where crawled payloads are written.
type ArtifactStoreConfig struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	TablePrefix   string `mapstructure:"table_prefix"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
	BaseDir       string `mapstructure:"base_dir"`
}

// QueueConfig selects the outcome queue.
type QueueConfig struct {
	Driver         string `mapstructure:"driver"`
	ProjectID      string `mapstructure:"project_id"`
	Topic          string `mapstructure:"topic"`
	Subscription   string `mapstructure:"subscription"`
	MaxOutstanding int    `mapstructure:"max_outstanding"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FRONTIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("logging.development", true)
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_depth", 64)
	v.SetDefault("pipeline.discovery_parallelism", 8)
	v.SetDefault("pipeline.item_timeout_seconds", 30)
	v.SetDefault("entity_store.driver", DriverMemory)
	v.SetDefault("entity_store.max_conns", 8)
	v.SetDefault("entity_store.sqlite_path", "frontier.db")
	v.SetDefault("artifact_store.driver", DriverMemory)
	v.SetDefault("artifact_store.mongo_database", "douban")
	v.SetDefault("artifact_store.gcs_prefix", "artifacts")
	v.SetDefault("artifact_store.base_dir", "artifacts")
	v.SetDefault("queue.driver", DriverMemory)
	v.SetDefault("queue.max_outstanding", 64)
	// Unmarshal only sees env values for keys viper already knows.
	v.SetDefault("auth.enabled", false)
	for _, key := range []string{
		"auth.api_key",
		"entity_store.dsn", "entity_store.table_prefix",
		"artifact_store.dsn", "artifact_store.table_prefix", "artifact_store.mongo_uri",
		"artifact_store.gcs_bucket",
		"queue.project_id", "queue.topic", "queue.subscription",
		"tracing.endpoint",
	} {
		v.SetDefault(key, "")
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.QueueDepth <= 0 {
		return fmt.Errorf("pipeline.queue_depth must be > 0")
	}
	if c.Pipeline.DiscoveryParallelism <= 0 {
		return fmt.Errorf("pipeline.discovery_parallelism must be > 0")
	}
	switch c.EntityStore.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.EntityStore.DSN == "" {
			return fmt.Errorf("entity_store.dsn is required for the postgres driver")
		}
	case DriverSQLite:
		if c.EntityStore.SQLitePath == "" {
			return fmt.Errorf("entity_store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("entity_store.driver %q is not supported", c.EntityStore.Driver)
	}
	switch c.ArtifactStore.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.ArtifactStore.DSN == "" && c.EntityStore.DSN == "" {
			return fmt.Errorf("artifact_store.dsn is required for the postgres driver")
		}
	case DriverMongo:
		if c.ArtifactStore.MongoURI == "" {
			return fmt.Errorf("artifact_store.mongo_uri is required for the mongo driver")
		}
	case DriverGCS:
		if c.ArtifactStore.GCSBucket == "" {
			return fmt.Errorf("artifact_store.gcs_bucket is required for the gcs driver")
		}
	case DriverFile:
		if c.ArtifactStore.BaseDir == "" {
			return fmt.Errorf("artifact_store.base_dir is required for the file driver")
		}
	default:
		return fmt.Errorf("artifact_store.driver %q is not supported", c.ArtifactStore.Driver)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("tracing.exporter %q is not supported", c.Tracing.Exporter)
	}
	switch c.Queue.Driver {
	case DriverMemory:
	case DriverPubSub:
		if c.Queue.ProjectID == "" || c.Queue.Topic == "" || c.Queue.Subscription == "" {
			return fmt.Errorf("queue.project_id, queue.topic and queue.subscription are required for pubsub")
		}
	default:
		return fmt.Errorf("queue.driver %q is not supported", c.Queue.Driver)
	}
	return nil
}

// ArtifactDSN is the Postgres DSN for artifacts, falling back to the entity
// store's DSN when both live in the same database.
func (c Config) ArtifactDSN() string {
	if c.ArtifactStore.DSN != "" {
		return c.ArtifactStore.DSN
	}
	return c.EntityStore.DSN
}

// ItemTimeout bounds the processing of one queued item.
func (c Config) ItemTimeout() time.Duration {
	return time.Duration(c.Pipeline.ItemTimeoutSeconds) * time.Second
}
