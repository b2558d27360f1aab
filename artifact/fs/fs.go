// Package fs implements docmind.ArtifactStore on the local filesystem.
package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/artifact"
)

// Store writes artifacts as files under one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New creates a Store rooted at dir. The directory is created on first Put.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, logger: docmind.NopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns "fs".
func (s *Store) Name() string { return "fs" }

// Put writes data atomically (temp file + rename) and returns the file path.
func (s *Store) Put(ctx context.Context, id string, data []byte) (string, error) {
	if err := artifact.CheckID(id); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("fs: create dir: %w", err)
	}

	path := filepath.Join(s.dir, artifact.Name(id))
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+id+"-*")
	if err != nil {
		return "", fmt.Errorf("fs: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("fs: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("fs: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("fs: rename: %w", err)
	}
	s.logger.Debug("fs: artifact stored", "id", id, "path", path, "bytes", len(data))
	return path, nil
}

// Open returns the stored file. A missing artifact yields an error matching
// os.ErrNotExist.
func (s *Store) Open(_ context.Context, id string) (io.ReadCloser, error) {
	if err := artifact.CheckID(id); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, artifact.Name(id)))
	if err != nil {
		return nil, fmt.Errorf("fs: open artifact %s: %w", id, err)
	}
	return f, nil
}

var _ docmind.ArtifactStore = (*Store)(nil)
