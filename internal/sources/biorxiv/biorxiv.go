// Package biorxiv locates preprint PDFs on bioRxiv and medRxiv.
package biorxiv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

const (
	// DefaultAPIURL is the bioRxiv/medRxiv details API.
	DefaultAPIURL = "https://api.biorxiv.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second

	// doiPrefix is the Cold Spring Harbor prefix shared by both servers.
	doiPrefix = "10.1101/"
)

// servers are tried in order.
var servers = []string{"biorxiv", "medrxiv"}

// Config holds configuration for the bioRxiv adapter.
type Config struct {
	APIURL string
	// ContentURLs maps a server name to its site root. Defaults to the public sites.
	ContentURLs map[string]string
	Timeout     time.Duration
	RateLimit   float64
}

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.ContentURLs == nil {
		c.ContentURLs = map[string]string{
			"biorxiv": "https://www.biorxiv.org",
			"medrxiv": "https://www.medrxiv.org",
		}
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Preprint is one version record of a preprint.
type Preprint struct {
	DOI     string `json:"doi"`
	Title   string `json:"title"`
	Version string `json:"version"`
	Server  string `json:"server"`
	Date    string `json:"date"`
}

type detailsResponse struct {
	Collection []Preprint `json:"collection"`
}

// Adapter implements sources.Adapter for bioRxiv and medRxiv.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates a bioRxiv adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: 2,
	}))
}

// NewWithHTTPClient creates an adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg, httpClient: httpClient}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceBioRxiv
}

// FindCandidate returns the full-text PDF of the latest version.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	doi := strings.ToLower(id.DOI())
	if !strings.HasPrefix(doi, doiPrefix) {
		return sources.NotFound("not a bioRxiv/medRxiv DOI"), nil
	}

	for _, server := range servers {
		var resp detailsResponse
		u := sources.JoinURL(a.config.APIURL, "/details/"+server+"/"+doi)
		found, err := a.httpClient.GetJSON(ctx, server, u, &resp)
		if err != nil {
			return sources.Candidate{}, fmt.Errorf("%s details: %w", server, err)
		}
		if !found {
			continue
		}
		latest, ok := latestVersion(resp.Collection)
		if !ok {
			continue
		}
		root, ok := a.config.ContentURLs[server]
		if !ok {
			continue
		}
		return sources.URL(fmt.Sprintf("%s/content/%sv%d.full.pdf", strings.TrimRight(root, "/"), doi, latest)), nil
	}
	return sources.NotFound("no preprint record"), nil
}

func latestVersion(records []Preprint) (int, bool) {
	best := 0
	for _, r := range records {
		if v, err := strconv.Atoi(strings.TrimSpace(r.Version)); err == nil && v > best {
			best = v
		}
	}
	return best, best > 0
}
