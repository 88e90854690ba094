// Package acquisition ties identifier resolution, skip-set persistence, the source
// waterfall, content storage, session records and outcome events into one call.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/events"
	"github.com/helixir/fulltext-acquisition-service/internal/repository"
	"github.com/helixir/fulltext-acquisition-service/internal/skipstore"
	"github.com/helixir/fulltext-acquisition-service/internal/storage"
)

// recordTimeout bounds bookkeeping after the waterfall, which may run after the
// caller's context has expired.
const recordTimeout = 10 * time.Second

// Resolver turns caller-supplied identifier fields into a canonical identifier.
type Resolver interface {
	Resolve(f domain.IdentifierFields) (domain.PublicationIdentifier, error)
}

// Waterfall walks the configured sources.
type Waterfall interface {
	Acquire(ctx context.Context, id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error)
	Locate(ctx context.Context, id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.LocateResult, error)
}

// Outcome is the result of Service.Acquire.
type Outcome struct {
	Result *domain.AcquisitionResult
	// Skip is the caller's skip set plus any persisted set plus every source tried.
	Skip domain.SkipSet
	// StorageURI locates the stored content when a sink is configured.
	StorageURI string
}

// Option configures a Service.
type Option func(*Service)

// WithSkipStore persists skip sets between calls.
func WithSkipStore(store skipstore.Store) Option {
	return func(s *Service) { s.skips = store }
}

// WithSink stores acquired content.
func WithSink(sink storage.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithSessionRepository records sessions and attempts.
func WithSessionRepository(repo repository.SessionRepository) Option {
	return func(s *Service) { s.sessions = repo }
}

// WithPublisher publishes an event per finished session.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger.With().Str("component", "acquisition_service").Logger() }
}

// Service runs acquisition requests end to end. Collaborators other than the resolver
// and the waterfall are optional.
type Service struct {
	resolver  Resolver
	waterfall Waterfall
	skips     skipstore.Store
	sink      storage.Sink
	sessions  repository.SessionRepository
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewService creates a Service.
func NewService(resolver Resolver, waterfall Waterfall, opts ...Option) *Service {
	s := &Service{
		resolver:  resolver,
		waterfall: waterfall,
		publisher: events.NopPublisher{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve normalizes the request identifier. A caller-supplied content hash is used when
// the fields alone cannot identify the publication.
func (s *Service) Resolve(req domain.AcquisitionRequest) (domain.PublicationIdentifier, error) {
	id, err := s.resolver.Resolve(req.Identifier)
	if err == nil {
		return id, nil
	}
	if req.ContentHash != "" && errors.Is(err, domain.ErrNoIdentifier) {
		return domain.NewPublicationIdentifier(req.Identifier, req.ContentHash)
	}
	return domain.PublicationIdentifier{}, err
}

// Acquire resolves the request, runs the waterfall below the merged skip set, then
// stores, records and announces the outcome.
//
// Exhaustion is not an error. When the session deadline expires the partial outcome is
// recorded and returned together with an error matching domain.ErrSessionDeadline.
// A storage failure after a successful download returns an error and persists nothing,
// so a retry re-runs the source.
//
// The stored skip set is dropped when the request asks for a fresh round, or when it
// leaves the waterfall nothing to try. The waterfall then runs below the caller's own
// skip set only.
func (s *Service) Acquire(ctx context.Context, req domain.AcquisitionRequest) (*Outcome, error) {
	id, skip, stored, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With().Str("identifier", id.Key()).Str("request_id", req.RequestID).Logger()
	if req.Fresh && s.skips != nil {
		s.clearStored(ctx, logger, id)
	}

	result, tried, acqErr := s.waterfall.Acquire(ctx, id, skip.Union(stored))
	if acqErr == nil && stored.Len() > 0 && !result.Success && len(result.Attempts) == 0 {
		logger.Info().Strs("stored_skip", stored.Strings()).Msg("stored skip set covers every source, starting a new round")
		s.clearStored(ctx, logger, id)
		result, tried, acqErr = s.waterfall.Acquire(ctx, id, skip)
	}
	if acqErr != nil && !errors.Is(acqErr, domain.ErrSessionDeadline) {
		return nil, acqErr
	}

	out := &Outcome{Result: result, Skip: tried}
	if result.Success && s.sink != nil {
		uri, err := s.sink.Put(ctx, result.Content)
		if err != nil {
			return nil, fmt.Errorf("storing content from %s: %w", result.SourceUsed, err)
		}
		out.StorageURI = uri
	}

	s.record(ctx, logger, id, out, req.RequestID)
	return out, acqErr
}

// Locate resolves the request and lists candidate URLs without downloading.
func (s *Service) Locate(ctx context.Context, req domain.AcquisitionRequest) (*domain.LocateResult, error) {
	id, skip, stored, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.waterfall.Locate(ctx, id, skip.Union(stored))
}

// prepare resolves the identifier and returns the caller's skip set and the stored one.
// A fresh request does not load the stored set.
func (s *Service) prepare(ctx context.Context, req domain.AcquisitionRequest) (domain.PublicationIdentifier, domain.SkipSet, domain.SkipSet, error) {
	id, err := s.Resolve(req)
	if err != nil {
		return id, domain.SkipSet{}, domain.SkipSet{}, err
	}

	skip, err := req.SkipSet()
	if err != nil {
		return id, domain.SkipSet{}, domain.SkipSet{}, err
	}

	if s.skips == nil || req.Fresh {
		return id, skip, domain.SkipSet{}, nil
	}

	stored, err := s.skips.Load(ctx, id.Key())
	if err != nil {
		s.logger.Warn().Err(err).Str("identifier", id.Key()).Msg("failed to load stored skip set, continuing without it")
		return id, skip, domain.SkipSet{}, nil
	}
	return id, skip, stored, nil
}

func (s *Service) clearStored(ctx context.Context, logger zerolog.Logger, id domain.PublicationIdentifier) {
	if err := s.skips.Clear(ctx, id.Key()); err != nil {
		logger.Warn().Err(err).Msg("failed to clear stored skip set")
	}
}

// record persists the session, saves the skip set and publishes the event. Failures
// are logged; the acquisition itself already happened.
func (s *Service) record(ctx context.Context, logger zerolog.Logger, id domain.PublicationIdentifier, out *Outcome, requestID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if s.sessions != nil {
		rec := &repository.SessionRecord{Result: out.Result, Skip: out.Skip, StorageURI: out.StorageURI}
		if err := s.sessions.Save(ctx, rec); err != nil {
			logger.Error().Err(err).Str("session_id", out.Result.SessionID.String()).Msg("failed to record session")
		}
	}

	if s.skips != nil {
		if err := s.skips.Save(ctx, id.Key(), out.Skip); err != nil {
			logger.Error().Err(err).Msg("failed to save skip set")
		}
	}

	ev, err := domain.SessionEvent(out.Result, out.Skip, out.StorageURI, requestID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build session event")
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("event_type", ev.EventType).Msg("failed to publish session event")
	}
}
