package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// txBeginner is implemented by pools but not by pgx.Tx.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const pgUniqueViolation = "23505"

var _ SessionRepository = (*PgSessionRepository)(nil)

// PgSessionRepository is the PostgreSQL SessionRepository.
type PgSessionRepository struct {
	db DBTX
}

// NewPgSessionRepository creates a repository on db.
func NewPgSessionRepository(db DBTX) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

const sessionColumns = `id, identifier_key, doi, pmid, pmc_id, arxiv_id, content_hash, title,
			publication_year, state, success, interrupted, source_used,
			content_kind, content_sha256, content_size, content_url, storage_uri,
			skip_sources, started_at, finished_at`

// Save inserts rec.Result and its attempts. If the repository holds a pool, both
// inserts run in one transaction.
func (r *PgSessionRepository) Save(ctx context.Context, rec *SessionRecord) error {
	if rec == nil || rec.Result == nil {
		return domain.NewValidationError("session", "session cannot be nil")
	}
	if rec.Result.SessionID == uuid.Nil {
		return domain.NewValidationError("session_id", "session ID is required")
	}
	if rec.Result.Identifier.IsZero() {
		return domain.NewValidationError("identifier", "identifier is required")
	}

	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for save: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := (&PgSessionRepository{db: tx}).save(ctx, rec); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	return r.save(ctx, rec)
}

func (r *PgSessionRepository) save(ctx context.Context, rec *SessionRecord) error {
	res := rec.Result
	id := res.Identifier

	var (
		kind, sha, contentURL *string
		size                  *int64
	)
	if c := res.Content; c != nil {
		kind = nullString(string(c.Kind))
		sha = nullString(c.SHA256)
		contentURL = nullString(c.URL)
		n := int64(c.SizeBytes)
		size = &n
	}

	query := `
		INSERT INTO acquisition_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err := r.db.Exec(ctx, query,
		res.SessionID, id.Key(), nullString(id.DOI()), nullString(id.PMID()), nullString(id.PMCID()),
		nullString(id.ArXivID()), nullString(id.ContentHash()), nullString(id.Title()),
		nullInt(id.Year()), string(res.State), res.Success, res.Interrupted, nullString(string(res.SourceUsed)),
		kind, sha, size, contentURL, nullString(rec.StorageURI),
		rec.Skip.Strings(), res.StartedAt, nullTime(res.FinishedAt),
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, res.SessionID)
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if len(res.Attempts) == 0 {
		return nil
	}

	n := len(res.Attempts)
	var (
		seqs      = make([]int32, n)
		sources   = make([]string, n)
		outcomes  = make([]string, n)
		urls      = make([]*string, n)
		kinds     = make([]*string, n)
		errs      = make([]*string, n)
		durations = make([]int64, n)
		ats       = make([]time.Time, n)
	)
	for i, a := range res.Attempts {
		seqs[i] = int32(i + 1)
		sources[i] = string(a.Source)
		outcomes[i] = string(a.Outcome)
		urls[i] = nullString(a.URL)
		kinds[i] = nullString(string(a.Kind))
		errs[i] = nullString(a.Error)
		durations[i] = a.Duration.Milliseconds()
		ats[i] = a.At
	}

	attemptsQuery := `
		INSERT INTO acquisition_attempts (
			session_id, seq, source, outcome, url, content_kind, error, duration_ms, attempted_at
		)
		SELECT $1, a.seq, a.source, a.outcome, a.url, a.content_kind, a.error, a.duration_ms, a.attempted_at
		FROM unnest($2::int[], $3::text[], $4::text[], $5::text[], $6::text[], $7::text[], $8::bigint[], $9::timestamptz[])
			AS a(seq, source, outcome, url, content_kind, error, duration_ms, attempted_at)`

	if _, err := r.db.Exec(ctx, attemptsQuery,
		res.SessionID, seqs, sources, outcomes, urls, kinds, errs, durations, ats,
	); err != nil {
		return fmt.Errorf("failed to insert attempts: %w", err)
	}
	return nil
}

// Get returns the session with its attempts in order.
func (r *PgSessionRepository) Get(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM acquisition_sessions WHERE id = $1`
	return r.getOne(ctx, query, id.String(), id)
}

// LatestByIdentifier returns the most recently started session for identifierKey.
func (r *PgSessionRepository) LatestByIdentifier(ctx context.Context, identifierKey string) (*SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM acquisition_sessions
		WHERE identifier_key = $1
		ORDER BY started_at DESC
		LIMIT 1`
	return r.getOne(ctx, query, identifierKey, identifierKey)
}

func (r *PgSessionRepository) getOne(ctx context.Context, query, notFoundID string, arg any) (*SessionRecord, error) {
	rec, err := scanSession(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("acquisition_session", notFoundID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	attempts, err := r.listAttempts(ctx, rec.Result.SessionID)
	if err != nil {
		return nil, err
	}
	rec.Result.Attempts = attempts
	return rec, nil
}

func (r *PgSessionRepository) listAttempts(ctx context.Context, sessionID uuid.UUID) ([]domain.AcquisitionAttempt, error) {
	query := `
		SELECT source, outcome, url, content_kind, error, duration_ms, attempted_at
		FROM acquisition_attempts
		WHERE session_id = $1
		ORDER BY seq`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.AcquisitionAttempt, 0)
	for rows.Next() {
		var (
			a                   domain.AcquisitionAttempt
			source, outcome     string
			url, kind, errorMsg *string
			durationMS          int64
		)
		if err := rows.Scan(&source, &outcome, &url, &kind, &errorMsg, &durationMS, &a.At); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Source = domain.SourceName(source)
		a.Outcome = domain.AttemptOutcome(outcome)
		a.URL = deref(url)
		a.Kind = domain.ContentKind(deref(kind))
		a.Error = deref(errorMsg)
		a.Duration = time.Duration(durationMS) * time.Millisecond
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempts: %w", err)
	}
	return attempts, nil
}

// OutcomeCounts aggregates attempts started at or after since, grouped by source and
// outcome.
func (r *PgSessionRepository) OutcomeCounts(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	query := `
		SELECT source, outcome, COUNT(*)
		FROM acquisition_attempts
		WHERE attempted_at >= $1
		GROUP BY source, outcome
		ORDER BY source, outcome`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	var counts []OutcomeCount
	for rows.Next() {
		var (
			c               OutcomeCount
			source, outcome string
		)
		if err := rows.Scan(&source, &outcome, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		c.Source = domain.SourceName(source)
		c.Outcome = domain.AttemptOutcome(outcome)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcome counts: %w", err)
	}
	return counts, nil
}

func scanSession(row pgx.Row) (*SessionRecord, error) {
	var (
		res                                    domain.AcquisitionResult
		identifierKey, state                   string
		doi, pmid, pmcID, arxivID, contentHash *string
		title, sourceUsed                      *string
		year                                   *int32
		kind, sha, contentURL, storageURI      *string
		size                                   *int64
		skip                                   []string
		finishedAt                             *time.Time
	)
	if err := row.Scan(
		&res.SessionID, &identifierKey, &doi, &pmid, &pmcID, &arxivID, &contentHash, &title,
		&year, &state, &res.Success, &res.Interrupted, &sourceUsed,
		&kind, &sha, &size, &contentURL, &storageURI,
		&skip, &res.StartedAt, &finishedAt,
	); err != nil {
		return nil, err
	}

	fields := domain.IdentifierFields{
		DOI:     deref(doi),
		PMID:    deref(pmid),
		PMCID:   deref(pmcID),
		ArXivID: deref(arxivID),
		Title:   deref(title),
	}
	if year != nil {
		fields.Year = int(*year)
	}
	id, err := domain.NewPublicationIdentifier(fields, deref(contentHash))
	if err != nil {
		return nil, fmt.Errorf("stored session %s (%s): %w", res.SessionID, identifierKey, err)
	}
	res.Identifier = id
	res.State = domain.SessionState(state)
	res.SourceUsed = domain.SourceName(deref(sourceUsed))
	if finishedAt != nil {
		res.FinishedAt = *finishedAt
	}

	if sha != nil {
		res.Content = &domain.AcquiredContent{
			Source:    res.SourceUsed,
			Validated: res.Success,
			Kind:      domain.ContentKind(deref(kind)),
			URL:       deref(contentURL),
			SHA256:    *sha,
		}
		if size != nil {
			res.Content.SizeBytes = int(*size)
		}
	}

	skipSet, err := domain.ParseSkipSet(skip)
	if err != nil {
		return nil, fmt.Errorf("stored session %s: %w", res.SessionID, err)
	}

	return &SessionRecord{Result: &res, Skip: skipSet, StorageURI: deref(storageURI)}, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int32 {
	if n == 0 {
		return nil
	}
	v := int32(n)
	return &v
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
