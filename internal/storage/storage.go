// Package storage writes acquired full text to a content sink. Objects are keyed by the
// SHA-256 of their bytes, so storing the same article twice is a no-op.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// Sink stores acquired content.
type Sink interface {
	// Put stores content and returns a URI locating it. Existing objects are not rewritten.
	Put(ctx context.Context, content *domain.AcquiredContent) (string, error)
	// Open returns the stored object for key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectKey returns the storage key for content: its hash plus an extension by kind.
func ObjectKey(content *domain.AcquiredContent) string {
	return strings.ToLower(content.SHA256) + extension(content.Kind)
}

func extension(kind domain.ContentKind) string {
	switch kind {
	case domain.ContentKindXML:
		return ".xml"
	default:
		return ".pdf"
	}
}

func contentType(kind domain.ContentKind) string {
	switch kind {
	case domain.ContentKindXML:
		return "application/xml"
	default:
		return "application/pdf"
	}
}

func checkContent(content *domain.AcquiredContent) error {
	if content == nil || len(content.Data) == 0 {
		return domain.NewValidationError("content", "content is empty")
	}
	if content.SHA256 == "" {
		return domain.NewValidationError("sha256", "content hash is required")
	}
	return nil
}
