// Package unpaywall finds open-access copies through the Unpaywall REST API.
package unpaywall

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

const (
	// DefaultBaseURL is the Unpaywall API base URL.
	DefaultBaseURL = "https://api.unpaywall.org"

	// DefaultRateLimit keeps well under the documented 100k requests per day.
	DefaultRateLimit = 5.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second
)

// Config holds configuration for the Unpaywall adapter.
type Config struct {
	// BaseURL is the Unpaywall API base URL.
	BaseURL string

	// Email identifies the caller; Unpaywall rejects requests without it.
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

// Location is one open-access copy of a work.
type Location struct {
	URL             string `json:"url"`
	URLForPDF       string `json:"url_for_pdf"`
	URLForLanding   string `json:"url_for_landing_page"`
	HostType        string `json:"host_type"`
	Version         string `json:"version"`
	License         string `json:"license"`
	IsBest          bool   `json:"is_best"`
	RepositoryLabel string `json:"repository_institution"`
}

// Response is the subset of the /v2/{doi} response used here.
type Response struct {
	DOI            string     `json:"doi"`
	IsOA           bool       `json:"is_oa"`
	BestOALocation *Location  `json:"best_oa_location"`
	OALocations    []Location `json:"oa_locations"`
}

// Adapter implements sources.Adapter for Unpaywall.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates an Unpaywall adapter.
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
	return domain.SourceUnpaywall
}

// FindCandidate looks the DOI up and prefers a direct PDF link over a landing page.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if id.DOI() == "" {
		return sources.NotFound("no DOI"), nil
	}

	u := sources.JoinURL(a.config.BaseURL, "/v2/"+sources.EscapeDOI(id.DOI())) + "?email=" + url.QueryEscape(a.config.Email)

	var resp Response
	found, err := a.httpClient.GetJSON(ctx, "Unpaywall", u, &resp)
	if err != nil {
		return sources.Candidate{}, fmt.Errorf("unpaywall lookup: %w", err)
	}
	if !found || !resp.IsOA {
		return sources.NotFound("no open-access location"), nil
	}

	if link := pickLink(resp); link != "" {
		return sources.URL(link), nil
	}
	return sources.NotFound("open-access location without URL"), nil
}

// pickLink returns the best PDF URL, then any PDF URL, then the best landing page.
func pickLink(resp Response) string {
	if resp.BestOALocation != nil && resp.BestOALocation.URLForPDF != "" {
		return resp.BestOALocation.URLForPDF
	}
	for _, loc := range resp.OALocations {
		if loc.URLForPDF != "" {
			return loc.URLForPDF
		}
	}
	if resp.BestOALocation != nil {
		if resp.BestOALocation.URLForLanding != "" {
			return resp.BestOALocation.URLForLanding
		}
		return resp.BestOALocation.URL
	}
	return ""
}
