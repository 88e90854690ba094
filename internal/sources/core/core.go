// Package core locates repository-hosted full text through the CORE v3 API.
package core

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/identifier"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

const (
	// DefaultBaseURL is the CORE API base URL.
	DefaultBaseURL = "https://api.core.ac.uk"

	// DefaultRateLimit is well under the free tier allowance.
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the CORE adapter.
type Config struct {
	BaseURL string
	// APIKey is required; without it the adapter reports not found for every lookup.
	APIKey    string
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

// Work is the subset of a CORE work record used here.
type Work struct {
	ID                 int64    `json:"id"`
	Title              string   `json:"title"`
	DOI                string   `json:"doi"`
	DownloadURL        string   `json:"downloadUrl"`
	SourceFulltextURLs []string `json:"sourceFulltextUrls"`
	YearPublished      int      `json:"yearPublished"`
}

// SearchResponse is the envelope of GET /v3/search/works.
type SearchResponse struct {
	TotalHits int    `json:"totalHits"`
	Results   []Work `json:"results"`
}

// Adapter implements sources.Adapter for CORE.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates a CORE adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    2,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
	}))
}

// NewWithHTTPClient creates an adapter with a custom HTTP client. The client is
// expected to carry the API key header.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg, httpClient: httpClient}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceCORE
}

// FindCandidate searches by DOI, then by exact normalized title.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if a.config.APIKey == "" {
		return sources.NotFound("CORE API key not configured"), nil
	}

	if id.DOI() != "" {
		w, err := a.search(ctx, fmt.Sprintf("doi:%q", id.DOI()))
		if err != nil {
			return sources.Candidate{}, err
		}
		if link := downloadLink(w); link != "" {
			return sources.URL(link), nil
		}
	}

	if id.Title() != "" {
		q := fmt.Sprintf("title:%q", id.Title())
		if id.Year() > 0 {
			q += " AND yearPublished:" + strconv.Itoa(id.Year())
		}
		results, err := a.searchAll(ctx, q)
		if err != nil {
			return sources.Candidate{}, err
		}
		want := identifier.NormalizeTitle(id.Title())
		for _, r := range results {
			if identifier.NormalizeTitle(r.Title) != want {
				continue
			}
			if link := downloadLink(&r); link != "" {
				return sources.URL(link), nil
			}
		}
	}

	return sources.NotFound("no CORE download URL"), nil
}

func (a *Adapter) search(ctx context.Context, q string) (*Work, error) {
	results, err := a.searchAll(ctx, q)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return &results[0], nil
}

func (a *Adapter) searchAll(ctx context.Context, q string) ([]Work, error) {
	u := sources.JoinURL(a.config.BaseURL, "/v3/search/works") + "?limit=5&q=" + url.QueryEscape(q)

	var resp SearchResponse
	found, err := a.httpClient.GetJSON(ctx, "CORE", u, &resp)
	if err != nil {
		return nil, fmt.Errorf("core search: %w", err)
	}
	if !found {
		return nil, nil
	}
	return resp.Results, nil
}

func downloadLink(w *Work) string {
	if w == nil {
		return ""
	}
	if strings.HasPrefix(w.DownloadURL, "http") {
		return w.DownloadURL
	}
	for _, u := range w.SourceFulltextURLs {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	return ""
}
