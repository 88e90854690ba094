// Package openalex locates open-access full text through the OpenAlex works API.
package openalex

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second
)

// Config holds configuration for the OpenAlex adapter.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	BaseURL string

	// Email is the contact email for the polite pool.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Adapter implements sources.Adapter for OpenAlex.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates an OpenAlex adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: 10,
		UserAgent: "Helixir-Fulltext/1.0 (mailto:" + cfg.Email + ")",
	}))
}

// NewWithHTTPClient creates an adapter with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg, httpClient: httpClient}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceOpenAlex
}

// FindCandidate resolves the work by DOI, PMID or PMC-ID and returns its best
// open-access PDF link, falling back to the open-access landing page.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	key := workKey(id)
	if key == "" {
		return sources.NotFound("no DOI, PMID or PMC-ID"), nil
	}

	u := sources.JoinURL(a.config.BaseURL, "/works/"+key)
	if a.config.Email != "" {
		u += "?mailto=" + url.QueryEscape(a.config.Email)
	}

	var work Work
	found, err := a.httpClient.GetJSON(ctx, "OpenAlex", u, &work)
	if err != nil {
		return sources.Candidate{}, fmt.Errorf("openalex lookup: %w", err)
	}
	if !found {
		return sources.NotFound("work not in OpenAlex"), nil
	}

	if link := pickLink(&work); link != "" {
		return sources.URL(link), nil
	}
	return sources.NotFound("no open-access location"), nil
}

// workKey builds the external-ID path segment OpenAlex accepts, e.g. "doi:10.1/x".
func workKey(id domain.PublicationIdentifier) string {
	switch {
	case id.DOI() != "":
		return "doi:" + sources.EscapeDOI(id.DOI())
	case id.PMID() != "":
		return "pmid:" + id.PMID()
	case id.PMCID() != "":
		return "pmcid:" + id.PMCID()
	default:
		return ""
	}
}

func pickLink(w *Work) string {
	if w.BestOALocation != nil && w.BestOALocation.PDFURL != "" {
		return w.BestOALocation.PDFURL
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.IsOA && w.PrimaryLocation.PDFURL != "" {
		return w.PrimaryLocation.PDFURL
	}
	for _, loc := range w.Locations {
		if loc.IsOA && loc.PDFURL != "" {
			return loc.PDFURL
		}
	}
	if w.OpenAccess != nil && w.OpenAccess.IsOA {
		return w.OpenAccess.OAURL
	}
	return ""
}
