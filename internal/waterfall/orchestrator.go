// Package waterfall sequences source adapters for one publication until one yields
// validated full text or every source is exhausted.
package waterfall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/fetch"
	"github.com/helixir/fulltext-acquisition-service/internal/observability"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
	"github.com/helixir/fulltext-acquisition-service/internal/validate"
)

const (
	// DefaultAdapterTimeout bounds one source, candidate lookup and download together.
	DefaultAdapterTimeout = 30 * time.Second

	// DefaultSessionTimeout bounds a whole acquisition.
	DefaultSessionTimeout = 5 * time.Minute

	// DefaultLandingHops is how many landing pages are followed for one candidate.
	DefaultLandingHops = 1

	// DefaultConcurrency bounds AcquireMany.
	DefaultConcurrency = 4
)

// AdapterSet yields adapters in priority order. *sources.Registry implements it.
type AdapterSet interface {
	Ordered(priority []domain.SourceName) (ordered []sources.Adapter, missing []domain.SourceName)
}

// Downloader fetches candidate URLs. *fetch.Fetcher implements it.
type Downloader interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// ContentValidator judges payloads. *validate.Validator implements it.
type ContentValidator interface {
	Validate(data []byte, expected domain.ContentKind) validate.Result
}

// LinkExtractor finds the PDF link on a landing page. *landing.Extractor implements it.
type LinkExtractor interface {
	ExtractPDFURL(html, baseURL string) string
}

// Config holds orchestrator settings.
type Config struct {
	// Priority is the source order. Default: domain.DefaultPriority().
	Priority []domain.SourceName

	AdapterTimeout time.Duration
	// SessionTimeout bounds Acquire. A negative value disables the deadline.
	SessionTimeout time.Duration
	LandingHops    int
	Concurrency    int
}

func (c *Config) applyDefaults() {
	if len(c.Priority) == 0 {
		c.Priority = domain.DefaultPriority()
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = DefaultAdapterTimeout
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.LandingHops < 0 {
		c.LandingHops = 0
	} else if c.LandingHops == 0 {
		c.LandingHops = DefaultLandingHops
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = observability.WithComponent(logger, "waterfall")
	}
}

// WithMetrics enables metrics recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs the acquisition waterfall. It holds no per-session state and is
// safe for concurrent use; each Acquire call is sequential internally.
type Orchestrator struct {
	adapters  AdapterSet
	fetcher   Downloader
	validator ContentValidator
	extractor LinkExtractor
	config    Config
	logger    zerolog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// New creates an Orchestrator.
func New(adapters AdapterSet, fetcher Downloader, validator ContentValidator, extractor LinkExtractor, cfg Config, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		adapters:  adapters,
		fetcher:   fetcher,
		validator: validator,
		extractor: extractor,
		config:    cfg,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Priority returns the configured source order.
func (o *Orchestrator) Priority() []domain.SourceName {
	return append([]domain.SourceName(nil), o.config.Priority...)
}

// Acquire walks the sources in priority order, skipping those in skip, and stops at the
// first validated payload. The returned skip set is skip plus every source attempted in
// this call. Exhaustion is a normal result with Success=false and a nil error.
//
// When the session deadline expires, the result holds the completed attempts, its state
// is all_exhausted, Interrupted is set and the error matches domain.ErrSessionDeadline.
// A source whose attempt was cut short by the deadline is not recorded and not added to
// the skip set. A source that failed on its own just before the deadline is recorded.
func (o *Orchestrator) Acquire(ctx context.Context, id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
	start := o.now()
	result := &domain.AcquisitionResult{
		SessionID:  uuid.New(),
		Identifier: id,
		State:      domain.SessionStatePending,
		Attempts:   []domain.AcquisitionAttempt{},
		StartedAt:  start,
	}
	logger := observability.WithSession(o.logger, result.SessionID.String(), id.Key())

	if o.config.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.SessionTimeout)
		defer cancel()
	}

	tried := skip
	for _, adapter := range o.ordered(logger) {
		name := adapter.Name()
		if tried.Contains(name) {
			continue
		}
		if ctx.Err() != nil {
			return o.interrupt(ctx, result, tried, logger)
		}

		result.State = domain.SessionStateTrying
		out := o.attempt(ctx, adapter, id)
		interrupted := ctx.Err() != nil && out.attempt.Outcome != domain.OutcomeSuccess
		if interrupted && out.cutShort() {
			return o.interrupt(ctx, result, tried, logger)
		}

		tried = tried.With(name)
		result.Attempts = append(result.Attempts, out.attempt)
		o.observe(logger, out)
		if interrupted {
			return o.interrupt(ctx, result, tried, logger)
		}

		if out.attempt.Outcome == domain.OutcomeSuccess {
			result.State = domain.SessionStateSuccess
			result.Success = true
			result.Content = out.content
			result.SourceUsed = name
			o.finish(result, "success")
			logger.Info().
				Str("source", string(name)).
				Int("bytes", out.content.SizeBytes).
				Str("kind", string(out.content.Kind)).
				Int("attempts", len(result.Attempts)).
				Msg("full text acquired")
			return result, tried, nil
		}
		result.State = domain.SessionStateSourceExhausted
	}

	result.State = domain.SessionStateAllExhausted
	o.finish(result, "exhausted")
	logger.Info().Int("attempts", len(result.Attempts)).Msg("all sources exhausted")
	return result, tried, nil
}

func (o *Orchestrator) ordered(logger zerolog.Logger) []sources.Adapter {
	ordered, missing := o.adapters.Ordered(o.config.Priority)
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = string(m)
		}
		logger.Warn().Strs("sources", names).Msg("sources in priority list are not registered")
	}
	return ordered
}

func (o *Orchestrator) interrupt(ctx context.Context, result *domain.AcquisitionResult, tried domain.SkipSet, logger zerolog.Logger) (*domain.AcquisitionResult, domain.SkipSet, error) {
	result.State = domain.SessionStateAllExhausted
	result.Interrupted = true
	o.finish(result, "deadline")

	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", domain.ErrSessionDeadline, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond), err)
	}
	logger.Warn().Err(err).Int("attempts", len(result.Attempts)).Msg("acquisition interrupted")
	return result, tried, err
}

func (o *Orchestrator) finish(result *domain.AcquisitionResult, label string) {
	result.FinishedAt = o.now()
	if o.metrics != nil {
		o.metrics.RecordSession(label, result.FinishedAt.Sub(result.StartedAt).Seconds())
		if result.Content != nil {
			o.metrics.RecordAcquired(result.SourceUsed, result.Content.SizeBytes)
		}
	}
}

// observe logs and counts one recorded attempt at the level its outcome warrants.
func (o *Orchestrator) observe(logger zerolog.Logger, out attemptOutcome) {
	a := out.attempt
	if o.metrics != nil {
		o.metrics.RecordAttempt(a.Source, a.Outcome, a.Duration.Seconds())
		if out.crash != nil {
			o.metrics.RecordAdapterCrash(a.Source)
		}
	}

	l := observability.WithSource(logger, a.Source)
	switch {
	case out.crash != nil:
		l.Error().Err(out.crash).Interface("panic", out.crash.Value).Msg("adapter crashed")
	case a.Outcome == domain.OutcomeURLNotFound:
		l.Debug().Str("reason", a.Error).Msg("no candidate")
	case a.Outcome == domain.OutcomeDownloadFailed:
		l.Warn().Str("failure", "download").Str("url", a.URL).Str("error", a.Error).Msg("attempt failed")
	case a.Outcome == domain.OutcomeValidationFailed:
		l.Warn().Str("failure", "validation").Str("url", a.URL).Str("reason", a.Error).
			Str("kind", string(a.Kind)).Msg("attempt failed")
	}
}
