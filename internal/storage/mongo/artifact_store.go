// Package mongo provides a MongoDB-backed ArtifactStore: one collection per
// kind with a unique index on the id field.
package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// Config captures the parameters required to connect to MongoDB.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// collection is the part of a Mongo collection the store needs.
type collection interface {
	createUniqueIndex(ctx context.Context, field string) error
	insert(ctx context.Context, doc bson.M) error
}

// ArtifactStore writes artifacts to MongoDB.
type ArtifactStore struct {
	client      *mongo.Client
	collections func(kind frontier.Kind) collection
}

// New connects to MongoDB and pings the primary.
func New(ctx context.Context, cfg Config) (*ArtifactStore, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("mongo database is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(cfg.Database)
	return &ArtifactStore{
		client: client,
		collections: func(kind frontier.Kind) collection {
			return mongoCollection{coll: db.Collection(string(kind))}
		},
	}, nil
}

// Close disconnects the client.
func (s *ArtifactStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *ArtifactStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// EnsureUniqueIndex creates the ascending unique index on the kind's id
// field. MongoDB treats an identical existing index as success.
func (s *ArtifactStore) EnsureUniqueIndex(ctx context.Context, kind frontier.Kind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := s.collections(kind).createUniqueIndex(ctx, kind.KeyField()); err != nil {
		return fmt.Errorf("create %s unique index: %w", kind, err)
	}
	return nil
}

// Persist inserts doc with its id field forced to id. A duplicate key error
// leaves the stored document untouched and is reported as DuplicateRejected.
func (s *ArtifactStore) Persist(
	ctx context.Context,
	kind frontier.Kind,
	id int64,
	doc any,
) (frontier.PersistResult, error) {
	if err := kind.Validate(); err != nil {
		return frontier.PersistResult{}, err
	}
	m, err := withKey(doc, kind.KeyField(), id)
	if err != nil {
		return frontier.PersistResult{}, err
	}
	if err := s.collections(kind).insert(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return frontier.DuplicateResult(kind, id, "mongo"), nil
		}
		return frontier.PersistResult{}, fmt.Errorf("insert %s artifact: %w", kind, err)
	}
	return frontier.StoredResult(), nil
}

// withKey converts doc to a BSON map and sets field to id.
func withKey(doc any, field string, id int64) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	m[field] = id
	return m, nil
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c mongoCollection) createUniqueIndex(ctx context.Context, field string) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(field + "_unique"),
	})
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (c mongoCollection) insert(ctx context.Context, doc bson.M) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert one: %w", err)
	}
	return nil
}
