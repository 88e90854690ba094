// Package pmc locates PubMed Central full text. It maps DOIs and PMIDs to PMC IDs with
// the NCBI ID converter and serves either the JATS XML from Europe PMC or the rendered PDF.
package pmc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

const (
	// DefaultIDConvURL is the NCBI PMC ID converter endpoint.
	DefaultIDConvURL = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"

	// DefaultEuropePMCURL is the Europe PMC REST base URL.
	DefaultEuropePMCURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultArticleURL is the base for rendered PDF downloads.
	DefaultArticleURL = "https://europepmc.org/articles"

	// DefaultRateLimit stays under the NCBI unauthenticated limit of 3/s.
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the PMC adapter.
type Config struct {
	IDConvURL    string
	EuropePMCURL string
	ArticleURL   string

	// Tool and Email identify the caller to NCBI.
	Tool  string
	Email string

	// PreferXML returns the JATS XML inline when Europe PMC has it.
	PreferXML bool

	Timeout   time.Duration
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.IDConvURL == "" {
		c.IDConvURL = DefaultIDConvURL
	}
	if c.EuropePMCURL == "" {
		c.EuropePMCURL = DefaultEuropePMCURL
	}
	if c.ArticleURL == "" {
		c.ArticleURL = DefaultArticleURL
	}
	if c.Tool == "" {
		c.Tool = "helixir-fulltext"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// idConvResponse is the JSON form of the ID converter response.
type idConvResponse struct {
	Status  string `json:"status"`
	Records []struct {
		PMCID  string `json:"pmcid"`
		PMID   string `json:"pmid"`
		DOI    string `json:"doi"`
		Status string `json:"status"`
	} `json:"records"`
}

// Adapter implements sources.Adapter for PubMed Central.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates a PMC adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: 3,
	}))
}

// NewWithHTTPClient creates an adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg, httpClient: httpClient}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourcePMC
}

// FindCandidate resolves a PMC ID and returns inline XML or the rendered PDF URL.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	pmcID := id.PMCID()
	if pmcID == "" {
		var err error
		pmcID, err = a.convert(ctx, id)
		if err != nil {
			return sources.Candidate{}, err
		}
	}
	if pmcID == "" {
		return sources.NotFound("not deposited in PMC"), nil
	}

	if a.config.PreferXML {
		u := sources.JoinURL(a.config.EuropePMCURL, "/"+pmcID+"/fullTextXML")
		body, _, found, err := a.httpClient.GetBody(ctx, "EuropePMC", u)
		if err != nil {
			return sources.Candidate{}, fmt.Errorf("europepmc full text: %w", err)
		}
		if found && len(body) > 0 {
			return sources.Inline(body, domain.ContentKindXML, "application/xml"), nil
		}
	}

	return sources.URL(sources.JoinURL(a.config.ArticleURL, "/"+pmcID) + "?pdf=render"), nil
}

// convert maps the DOI or PMID to a PMC ID. An empty result means no PMC record.
func (a *Adapter) convert(ctx context.Context, id domain.PublicationIdentifier) (string, error) {
	lookup := id.DOI()
	if lookup == "" {
		lookup = id.PMID()
	}
	if lookup == "" {
		return "", nil
	}

	q := url.Values{}
	q.Set("ids", lookup)
	q.Set("format", "json")
	q.Set("tool", a.config.Tool)
	if a.config.Email != "" {
		q.Set("email", a.config.Email)
	}

	var resp idConvResponse
	found, err := a.httpClient.GetJSON(ctx, "NCBI", a.config.IDConvURL+"?"+q.Encode(), &resp)
	if err != nil {
		return "", fmt.Errorf("pmc id conversion: %w", err)
	}
	if !found {
		return "", nil
	}
	for _, r := range resp.Records {
		if strings.HasPrefix(strings.ToUpper(r.PMCID), "PMC") {
			return strings.ToUpper(r.PMCID), nil
		}
	}
	return "", nil
}
