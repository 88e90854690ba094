package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

var _ Sink = (*FileSink)(nil)

// FileSink stores objects as files under a root directory.
type FileSink struct {
	root string
}

// NewFileSink creates root if needed.
func NewFileSink(root string) (*FileSink, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &FileSink{root: abs}, nil
}

// Put writes content to a temporary file and renames it into place.
func (s *FileSink) Put(_ context.Context, content *domain.AcquiredContent) (string, error) {
	if err := checkContent(content); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, ObjectKey(content))
	uri := "file://" + filepath.ToSlash(path)
	if _, err := os.Stat(path); err == nil {
		return uri, nil
	}

	tmp, err := os.CreateTemp(s.root, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(content.Data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("moving content into place: %w", err)
	}
	return uri, nil
}

// Open implements Sink.
func (s *FileSink) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if key != filepath.Base(key) {
		return nil, domain.NewValidationError("key", "key must not contain path separators")
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewNotFoundError("object", key)
		}
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	return f, nil
}
