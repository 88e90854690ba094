package waterfall

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/fetch"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
	"github.com/helixir/fulltext-acquisition-service/internal/validate"
)

// attemptOutcome is what one source produced: the attempt record, the content on
// success, the recovered panic if the adapter crashed and the error behind a failure.
type attemptOutcome struct {
	attempt domain.AcquisitionAttempt
	content *domain.AcquiredContent
	crash   *domain.AdapterCrashError
	cause   error
}

// cutShort reports whether the failure came from the context ending rather than from
// the source itself.
func (out attemptOutcome) cutShort() bool {
	return errors.Is(out.cause, context.Canceled) || errors.Is(out.cause, context.DeadlineExceeded)
}

// payload is downloaded or inline content awaiting validation.
type payload struct {
	data        []byte
	contentType string
	url         string
}

// attempt runs one source under the per-adapter timeout.
func (o *Orchestrator) attempt(ctx context.Context, adapter sources.Adapter, id domain.PublicationIdentifier) (out attemptOutcome) {
	name := adapter.Name()
	start := o.now()
	out.attempt = domain.AcquisitionAttempt{Source: name, At: start}
	defer func() { out.attempt.Duration = o.now().Sub(start) }()

	actx, cancel := context.WithTimeout(ctx, o.config.AdapterTimeout)
	defer cancel()

	cand, err := o.lookup(actx, adapter, id)
	if err != nil {
		var crash *domain.AdapterCrashError
		if errors.As(err, &crash) {
			out.crash = crash
		}
		out.cause = err
		return out.fail(domain.OutcomeDownloadFailed, err.Error())
	}

	var p payload
	switch cand.Kind {
	case sources.KindNotFound:
		return out.fail(domain.OutcomeURLNotFound, cand.Reason)
	case sources.KindInline:
		p = payload{data: cand.Content, contentType: cand.ContentType}
	case sources.KindURL:
		out.attempt.URL = cand.URL
		var outcome domain.AttemptOutcome
		p, outcome, err = o.download(actx, name, cand.URL, cand.ExpectedKind())
		if p.url != "" {
			out.attempt.URL = p.url
		}
		if err != nil {
			out.cause = err
			return out.fail(outcome, err.Error())
		}
	default:
		return out.fail(domain.OutcomeDownloadFailed, fmt.Sprintf("unknown candidate kind %d", cand.Kind))
	}

	verdict := o.validator.Validate(p.data, cand.ExpectedKind())
	if !verdict.OK {
		out.attempt.Kind = verdict.Kind
		return out.fail(domain.OutcomeValidationFailed, verdict.String())
	}

	sum := sha256.Sum256(p.data)
	out.attempt.Outcome = domain.OutcomeSuccess
	out.attempt.Kind = verdict.Kind
	out.content = &domain.AcquiredContent{
		Data:        p.data,
		SizeBytes:   len(p.data),
		Source:      name,
		Validated:   true,
		Kind:        verdict.Kind,
		URL:         p.url,
		ContentType: p.contentType,
		SHA256:      hex.EncodeToString(sum[:]),
		PageCount:   verdict.PageCount,
	}
	return out
}

func (out attemptOutcome) fail(outcome domain.AttemptOutcome, msg string) attemptOutcome {
	out.attempt.Outcome = outcome
	out.attempt.Error = msg
	return out
}

// lookup asks the adapter for a candidate. Availability probes and the lookup run in
// their own goroutine so that an adapter ignoring ctx cannot outlive the timeout, and
// panics come back as AdapterCrashError.
func (o *Orchestrator) lookup(ctx context.Context, adapter sources.Adapter, id domain.PublicationIdentifier) (sources.Candidate, error) {
	type reply struct {
		cand sources.Candidate
		err  error
	}
	ch := make(chan reply, 1)

	go func() {
		var r reply
		defer func() {
			if v := recover(); v != nil {
				r = reply{err: &domain.AdapterCrashError{Source: adapter.Name(), Value: v}}
			}
			ch <- r
		}()

		if p, ok := adapter.(sources.Prober); ok && !p.IsAvailable(ctx) {
			r.cand = sources.NotFound("source unavailable")
			return
		}
		r.cand, r.err = adapter.FindCandidate(ctx, id)
	}()

	select {
	case r := <-ch:
		return r.cand, r.err
	case <-ctx.Done():
		return sources.Candidate{}, fmt.Errorf("candidate lookup: %w", ctx.Err())
	}
}

// download fetches rawURL, following up to LandingHops landing pages when a PDF is
// expected but HTML comes back from a URL that does not look like a PDF. A PDF-like URL
// serving HTML is handed to the validator, which rejects it as html-rejected.
func (o *Orchestrator) download(ctx context.Context, source domain.SourceName, rawURL string, expected domain.ContentKind) (payload, domain.AttemptOutcome, error) {
	target := rawURL
	for hop := 0; ; hop++ {
		res, err := o.fetcher.Fetch(ctx, target)
		if err != nil {
			derr := &domain.DownloadError{Source: source, URL: target, Cause: err}
			var status *fetch.StatusError
			if errors.As(err, &status) {
				derr.StatusCode = status.StatusCode
			}
			return payload{url: target}, domain.OutcomeDownloadFailed, derr
		}

		p := payload{data: res.Content, contentType: res.ContentType, url: res.FinalURL}
		if p.url == "" {
			p.url = target
		}

		landing := expected == domain.ContentKindPDF && res.IsHTML() && !validate.IsPDFLike(target)
		if !landing || hop >= o.config.LandingHops {
			return p, "", nil
		}

		next := o.extractor.ExtractPDFURL(string(res.Content), p.url)
		if next == "" {
			return p, domain.OutcomeURLNotFound, errors.New("landing page has no PDF link")
		}
		target = next
	}
}
