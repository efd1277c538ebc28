// Package local implements a filesystem ArtifactStore: one JSON file per
// artifact under <base>/<kind>/<id>.json, created exclusively.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// Config captures the parameters for the filesystem artifact store.
type Config struct {
	// BaseDir is the root directory where artifacts are written.
	BaseDir string
}

// ArtifactStore writes artifacts to the local filesystem.
type ArtifactStore struct {
	baseDir string
}

// New creates the base directory if needed and checks it is writable.
func New(cfg Config) (*ArtifactStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &ArtifactStore{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// EnsureUniqueIndex creates the kind's directory. File names are unique per
// directory, which is the index.
func (s *ArtifactStore) EnsureUniqueIndex(_ context.Context, kind frontier.Kind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir(kind), 0o750); err != nil {
		return fmt.Errorf("create %s artifact directory: %w", kind, err)
	}
	return nil
}

// Persist writes doc with O_EXCL so a second write for the same id fails
// without touching the first file.
func (s *ArtifactStore) Persist(
	_ context.Context,
	kind frontier.Kind,
	id int64,
	doc any,
) (frontier.PersistResult, error) {
	if err := kind.Validate(); err != nil {
		return frontier.PersistResult{}, err
	}
	if _, err := os.Stat(s.dir(kind)); errors.Is(err, os.ErrNotExist) {
		return frontier.PersistResult{}, fmt.Errorf("%w: %s", frontier.ErrIndexMissing, kind)
	}
	data, err := frontier.EncodeArtifact(doc)
	if err != nil {
		return frontier.PersistResult{}, err
	}

	path := s.Path(kind, id)
	// Write to a temp file first so a crash never leaves a partial artifact
	// under the final name.
	tmp, err := os.CreateTemp(s.dir(kind), ".tmp-"+strconv.FormatInt(id, 10)+"-*")
	if err != nil {
		return frontier.PersistResult{}, fmt.Errorf("create temp artifact: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return frontier.PersistResult{}, fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return frontier.PersistResult{}, fmt.Errorf("close temp artifact: %w", err)
	}
	// Link fails with ErrExist when the final name is taken.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return frontier.DuplicateResult(kind, id, "file"), nil
		}
		return frontier.PersistResult{}, fmt.Errorf("link %s artifact: %w", kind, err)
	}
	return frontier.StoredResult(), nil
}

// Lookup reads the stored document for kind/id.
func (s *ArtifactStore) Lookup(kind frontier.Kind, id int64) ([]byte, error) {
	data, err := os.ReadFile(s.Path(kind, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, frontier.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s artifact: %w", kind, err)
	}
	return data, nil
}

// Path is the file an artifact lives in.
func (s *ArtifactStore) Path(kind frontier.Kind, id int64) string {
	return filepath.Join(s.dir(kind), strconv.FormatInt(id, 10)+".json")
}

func (s *ArtifactStore) dir(kind frontier.Kind) string {
	return filepath.Join(s.baseDir, string(kind))
}
