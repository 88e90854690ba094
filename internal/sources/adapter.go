// Package sources defines the contract shared by all full-text source adapters,
// plus the rate-limited HTTP plumbing they use.
package sources

import (
	"context"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// CandidateKind tags the variant carried by a Candidate.
type CandidateKind int

const (
	// KindNotFound means the source definitively has nothing for the identifier.
	KindNotFound CandidateKind = iota
	// KindURL means the source produced a URL to download.
	KindURL
	// KindInline means the source returned the content itself.
	KindInline
)

// String returns a readable name for logs.
func (k CandidateKind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindInline:
		return "inline"
	default:
		return "not-found"
	}
}

// Candidate is the typed result of FindCandidate: a URL, inline content, or not found.
type Candidate struct {
	Kind CandidateKind

	// URL is set for KindURL.
	URL string

	// Content and ContentType are set for KindInline.
	Content     []byte
	ContentType string

	// Expected is the artifact the candidate should validate as. Zero means PDF.
	Expected domain.ContentKind

	// Reason explains a KindNotFound result.
	Reason string
}

// URL returns a candidate pointing at a download URL expected to yield a PDF.
func URL(u string) Candidate {
	return Candidate{Kind: KindURL, URL: u, Expected: domain.ContentKindPDF}
}

// Inline returns a candidate carrying already-fetched content.
func Inline(content []byte, expected domain.ContentKind, contentType string) Candidate {
	return Candidate{Kind: KindInline, Content: content, ContentType: contentType, Expected: expected}
}

// NotFound returns a definitive not-found candidate.
func NotFound(reason string) Candidate {
	return Candidate{Kind: KindNotFound, Reason: reason}
}

// ExpectedKind returns the content kind the candidate should validate as.
func (c Candidate) ExpectedKind() domain.ContentKind {
	if c.Expected == "" {
		return domain.ContentKindPDF
	}
	return c.Expected
}

// Adapter turns a publication identifier into a full-text candidate for one source.
//
// Implementations report "nothing here" as a NotFound candidate with a nil error.
// Errors are reserved for failures (network, malformed responses) and are recorded
// by the orchestrator as download failures. Adapters retry at most once on their own
// transient errors; retrying across sources belongs to the orchestrator.
type Adapter interface {
	// Name returns the source tag used in priority lists, attempts and skip sets.
	Name() domain.SourceName

	// FindCandidate looks the identifier up at the source.
	FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (Candidate, error)
}

// Prober is implemented by optional sources that may be unreachable. The answer is
// computed once per adapter instance and must be safe to read concurrently.
type Prober interface {
	IsAvailable(ctx context.Context) bool
}
