// Package gcs provides an ArtifactStore backed by Google Cloud Storage. Each
// artifact is one object named by kind and id, created only if absent.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// bucket is the slice of GCS the store depends on.
type bucket interface {
	attrs(ctx context.Context) error
	createIfAbsent(ctx context.Context, name string, data []byte) error
}

// ArtifactStore writes artifacts to a configured GCS bucket.
type ArtifactStore struct {
	bucket     bucket
	bucketName string
	prefix     string
}

// New creates a GCS-backed artifact store.
func New(client *storage.Client, cfg Config) (*ArtifactStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ArtifactStore{
		bucket:     gcsBucket{handle: client.Bucket(cfg.Bucket)},
		bucketName: cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// EnsureUniqueIndex checks the bucket is reachable. Object names are unique
// per bucket, so there is no index to build.
func (s *ArtifactStore) EnsureUniqueIndex(ctx context.Context, kind frontier.Kind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := s.bucket.attrs(ctx); err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucketName, err)
	}
	return nil
}

// Persist uploads doc as JSON unless an object for (kind, id) already exists.
func (s *ArtifactStore) Persist(
	ctx context.Context,
	kind frontier.Kind,
	id int64,
	doc any,
) (frontier.PersistResult, error) {
	if err := kind.Validate(); err != nil {
		return frontier.PersistResult{}, err
	}
	data, err := frontier.EncodeArtifact(doc)
	if err != nil {
		return frontier.PersistResult{}, err
	}
	if err := s.bucket.createIfAbsent(ctx, s.ObjectName(kind, id), data); err != nil {
		if isPreconditionFailed(err) {
			return frontier.DuplicateResult(kind, id, "gcs"), nil
		}
		return frontier.PersistResult{}, fmt.Errorf("upload %s artifact: %w", kind, err)
	}
	return frontier.StoredResult(), nil
}

// ObjectName returns the object path for an artifact.
func (s *ArtifactStore) ObjectName(kind frontier.Kind, id int64) string {
	return path.Join(s.prefix, string(kind), strconv.FormatInt(id, 10)+".json")
}

// URI returns the gs:// location of an artifact.
func (s *ArtifactStore) URI(kind frontier.Kind, id int64) string {
	return fmt.Sprintf("gs://%s/%s", s.bucketName, s.ObjectName(kind, id))
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusPreconditionFailed
	}
	return false
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b gcsBucket) attrs(ctx context.Context) error {
	_, err := b.handle.Attrs(ctx)
	return err
}

func (b gcsBucket) createIfAbsent(ctx context.Context, name string, data []byte) error {
	writer := b.handle.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
