// Package arxiv locates arXiv preprint PDFs by arXiv ID, arXiv DOI or title search.
package arxiv

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/identifier"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

const (
	// DefaultAPIURL is the arXiv export API query endpoint.
	DefaultAPIURL = "http://export.arxiv.org/api/query"

	// DefaultPDFURL is the base for PDF downloads by ID.
	DefaultPDFURL = "https://arxiv.org/pdf"

	// DefaultRateLimit follows the arXiv API guidance of one request every three seconds.
	DefaultRateLimit = 1.0 / 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// arxivDOIPrefix is the DataCite prefix arXiv assigns to every paper.
	arxivDOIPrefix = "10.48550/arxiv."
)

// Config holds configuration for the arXiv adapter.
type Config struct {
	APIURL    string
	PDFURL    string
	Timeout   time.Duration
	RateLimit float64
	// MaxResults bounds title searches. Default: 5.
	MaxResults int
}

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.PDFURL == "" {
		c.PDFURL = DefaultPDFURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
}

// Adapter implements sources.Adapter for arXiv.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Adapter = (*Adapter)(nil)

// New creates an arXiv adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: 1,
	}))
}

// NewWithHTTPClient creates an adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Adapter {
	cfg.applyDefaults()
	return &Adapter{config: cfg, httpClient: httpClient}
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceArXiv
}

// FindCandidate builds the PDF URL directly when the arXiv ID is known, and otherwise
// searches titles through the Atom API.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if arxivID := a.knownID(id); arxivID != "" {
		return sources.URL(sources.JoinURL(a.config.PDFURL, "/"+arxivID)), nil
	}
	if id.Title() == "" {
		return sources.NotFound("no arXiv ID or title"), nil
	}

	link, err := a.searchTitle(ctx, id.Title())
	if err != nil {
		return sources.Candidate{}, err
	}
	if link == "" {
		return sources.NotFound("no matching arXiv entry"), nil
	}
	return sources.URL(link), nil
}

func (a *Adapter) knownID(id domain.PublicationIdentifier) string {
	if id.ArXivID() != "" {
		return id.ArXivID()
	}
	doi := strings.ToLower(id.DOI())
	if strings.HasPrefix(doi, arxivDOIPrefix) {
		return identifier.NormalizeArXivID(id.DOI()[len(arxivDOIPrefix):])
	}
	return ""
}

func (a *Adapter) searchTitle(ctx context.Context, title string) (string, error) {
	want := identifier.NormalizeTitle(title)
	if want == "" {
		return "", nil
	}

	q := url.Values{}
	q.Set("search_query", fmt.Sprintf("ti:%q", want))
	q.Set("max_results", fmt.Sprint(a.config.MaxResults))

	body, _, found, err := a.httpClient.GetBody(ctx, "arXiv", a.config.APIURL+"?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("arxiv search: %w", err)
	}
	if !found {
		return "", nil
	}

	feed, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing arxiv feed: %w", err)
	}

	for _, entry := range feed.Entries {
		if identifier.NormalizeTitle(entry.Title) != want {
			continue
		}
		for _, l := range entry.Links {
			if l.Type == "application/pdf" || l.Title == "pdf" {
				return l.Href, nil
			}
		}
	}
	return "", nil
}
