// Package doiredirect is the last-resort source: it hands the DOI resolver URL to the
// orchestrator, which follows it to the publisher page and scrapes the PDF link there.
package doiredirect

import (
	"context"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

// DefaultResolverURL is the public DOI resolver.
const DefaultResolverURL = "https://doi.org"

// Config holds configuration for the DOI redirect adapter.
type Config struct {
	ResolverURL string
}

// Adapter implements sources.Adapter for plain DOI resolution.
type Adapter struct {
	resolver string
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates a DOI redirect adapter.
func New(cfg Config) *Adapter {
	if cfg.ResolverURL == "" {
		cfg.ResolverURL = DefaultResolverURL
	}
	return &Adapter{resolver: cfg.ResolverURL}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceDOIRedirect
}

// FindCandidate returns the resolver URL for the DOI.
func (a *Adapter) FindCandidate(_ context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if id.DOI() == "" {
		return sources.NotFound("no DOI"), nil
	}
	return sources.URL(sources.JoinURL(a.resolver, "/"+id.DOI())), nil
}
