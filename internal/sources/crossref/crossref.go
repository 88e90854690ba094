// Package crossref reads full-text links that publishers deposit with Crossref.
package crossref

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
	"github.com/helixir/fulltext-acquisition-service/internal/validate"
)

const (
	// DefaultBaseURL is the Crossref REST API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit matches the public pool allowance.
	DefaultRateLimit = 5.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second
)

// Config holds configuration for the Crossref adapter.
type Config struct {
	BaseURL string
	// Email routes requests to the polite pool.
	Email     string
	Timeout   time.Duration
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

// Link is a deposited full-text link.
type Link struct {
	URL                 string `json:"URL"`
	ContentType         string `json:"content-type"`
	ContentVersion      string `json:"content-version"`
	IntendedApplication string `json:"intended-application"`
}

// WorkResponse is the envelope of GET /works/{doi}.
type WorkResponse struct {
	Status  string `json:"status"`
	Message struct {
		DOI  string `json:"DOI"`
		Link []Link `json:"link"`
	} `json:"message"`
}

// Adapter implements sources.Adapter for Crossref.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates a Crossref adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: 5,
		UserAgent: "Helixir-Fulltext/1.0 (mailto:" + cfg.Email + ")",
	}))
}

// NewWithHTTPClient creates an adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg, httpClient: httpClient}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceCrossref
}

// FindCandidate returns the first deposited link declared as PDF, or one that looks
// like a PDF by its URL.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if id.DOI() == "" {
		return sources.NotFound("no DOI"), nil
	}

	u := sources.JoinURL(a.config.BaseURL, "/works/"+sources.EscapeDOI(id.DOI()))
	if a.config.Email != "" {
		u += "?mailto=" + url.QueryEscape(a.config.Email)
	}

	var resp WorkResponse
	found, err := a.httpClient.GetJSON(ctx, "Crossref", u, &resp)
	if err != nil {
		return sources.Candidate{}, fmt.Errorf("crossref lookup: %w", err)
	}
	if !found {
		return sources.NotFound("DOI not registered with Crossref"), nil
	}

	if link := pickLink(resp.Message.Link); link != "" {
		return sources.URL(link), nil
	}
	return sources.NotFound("no PDF link deposited"), nil
}

func pickLink(links []Link) string {
	for _, l := range links {
		if strings.EqualFold(l.ContentType, "application/pdf") && l.URL != "" {
			return l.URL
		}
	}
	for _, l := range links {
		if strings.EqualFold(l.ContentType, "unspecified") && validate.IsPDFLike(l.URL) {
			return l.URL
		}
	}
	return ""
}
