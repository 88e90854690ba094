package waterfall

import (
	"context"
	"errors"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

// Locate asks every non-skipped source for a candidate without downloading anything.
// Each source gets one attempt: url-found, url-not-found, or download-failed when the
// adapter errored or crashed. Candidates are returned in priority order.
func (o *Orchestrator) Locate(ctx context.Context, id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.LocateResult, error) {
	logger := o.logger.With().Str("identifier", id.Key()).Logger()
	result := &domain.LocateResult{
		Identifier: id,
		Candidates: []domain.CandidateLocation{},
		Attempts:   []domain.AcquisitionAttempt{},
	}

	for _, adapter := range o.ordered(logger) {
		name := adapter.Name()
		if skip.Contains(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := o.now()
		actx, cancel := context.WithTimeout(ctx, o.config.AdapterTimeout)
		cand, err := o.lookup(actx, adapter, id)
		cancel()

		att := domain.AcquisitionAttempt{Source: name, At: start, Duration: o.now().Sub(start)}
		switch {
		case err != nil:
			att.Outcome = domain.OutcomeDownloadFailed
			att.Error = err.Error()
			var crash *domain.AdapterCrashError
			if errors.As(err, &crash) {
				logger.Error().Err(err).Str("source", string(name)).Msg("adapter crashed")
			}
		case cand.Kind == sources.KindNotFound:
			att.Outcome = domain.OutcomeURLNotFound
			att.Error = cand.Reason
		default:
			att.Outcome = domain.OutcomeURLFound
			att.URL = cand.URL
			att.Kind = cand.ExpectedKind()
			result.Candidates = append(result.Candidates, domain.CandidateLocation{
				Source: name,
				URL:    cand.URL,
				Inline: cand.Kind == sources.KindInline,
			})
		}
		result.Attempts = append(result.Attempts, att)
	}
	return result, nil
}
