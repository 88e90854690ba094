// Package repository persists acquisition sessions and their attempts in PostgreSQL.
//
// Implementations accept a DBTX so they run against the pool or inside a transaction.
// When handed a pool, SessionRepository.Save opens its own transaction so a session is
// never stored without its attempts.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/fulltext-acquisition-service/internal/database"
	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// SessionRecord is one stored acquisition session.
type SessionRecord struct {
	Result *domain.AcquisitionResult
	// Skip is the skip set returned to the caller after the session.
	Skip domain.SkipSet
	// StorageURI locates the acquired content in the content sink, if any.
	StorageURI string
}

// OutcomeCount is the number of attempts a source ended with one outcome.
type OutcomeCount struct {
	Source  domain.SourceName
	Outcome domain.AttemptOutcome
	Count   int64
}

// SessionRepository stores acquisition sessions.
type SessionRepository interface {
	// Save inserts the session and all of its attempts atomically.
	Save(ctx context.Context, rec *SessionRecord) error
	// Get returns a session with its attempts.
	Get(ctx context.Context, id uuid.UUID) (*SessionRecord, error)
	// LatestByIdentifier returns the most recent session for an identifier key.
	LatestByIdentifier(ctx context.Context, identifierKey string) (*SessionRecord, error)
	// OutcomeCounts aggregates attempt outcomes per source since the given time.
	OutcomeCounts(ctx context.Context, since time.Time) ([]OutcomeCount, error)
}
