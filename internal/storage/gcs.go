package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

const gcsWriteTimeout = 2 * time.Minute

var _ Sink = (*GCSSink)(nil)

// GCSSink stores objects in a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewGCSSink creates a sink on an existing client.
func NewGCSSink(client *storage.Client, bucket, prefix string, logger zerolog.Logger) *GCSSink {
	return &GCSSink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "gcs_sink").Str("bucket", bucket).Logger(),
	}
}

// Put uploads content unless an object with the same hash already exists.
func (s *GCSSink) Put(ctx context.Context, content *domain.AcquiredContent) (string, error) {
	if err := checkContent(content); err != nil {
		return "", err
	}

	name := s.prefix + ObjectKey(content)
	uri := fmt.Sprintf("gs://%s/%s", s.bucket, name)
	obj := s.client.Bucket(s.bucket).Object(name)

	ctx, cancel := context.WithTimeout(ctx, gcsWriteTimeout)
	defer cancel()

	if _, err := obj.Attrs(ctx); err == nil {
		s.logger.Debug().Str("object", name).Msg("object already stored")
		return uri, nil
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("checking GCS object %q: %w", name, err)
	}

	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType(content.Kind)
	w.Metadata = map[string]string{
		"source": string(content.Source),
		"sha256": content.SHA256,
	}
	if _, err := io.Copy(w, bytes.NewReader(content.Data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return uri, nil
}

// Open implements Sink.
func (s *GCSSink) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.prefix + key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.NewNotFoundError("object", key)
		}
		return nil, fmt.Errorf("opening GCS object %q: %w", key, err)
	}
	return r, nil
}
