// Package libgen scrapes the scientific-articles section of an operator-configured
// Library Genesis mirror.
package libgen

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

const (
	// DefaultRateLimit keeps mirror traffic low.
	DefaultRateLimit = 0.5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 20 * time.Second
)

// Config holds configuration for the libgen adapter.
type Config struct {
	// BaseURL is the mirror origin. There is no default.
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Adapter implements sources.Adapter and sources.Prober for libgen.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
	probe      *sources.CachedProbe
}

var (
	_ sources.Adapter = (*Adapter)(nil)
	_ sources.Prober  = (*Adapter)(nil)
)

// New creates a libgen adapter.
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
	a := &Adapter{config: cfg, httpClient: httpClient}
	a.probe = sources.NewCachedProbe(func(ctx context.Context) bool {
		if a.config.BaseURL == "" {
			return false
		}
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.httpClient.Reachable(ctx, a.config.BaseURL)
	})
	return a
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceLibGen
}

// IsAvailable reports whether the mirror answered the one-time probe.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.probe.Available(ctx)
}

// FindCandidate looks the DOI up in the article index. The index links either directly
// to get.php or to an intermediate ads.php page that carries the get.php link.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if a.config.BaseURL == "" {
		return sources.NotFound("mirror not configured"), nil
	}
	if id.DOI() == "" {
		return sources.NotFound("no DOI"), nil
	}

	page := sources.JoinURL(a.config.BaseURL, "/scimag/") + "?q=" + url.QueryEscape(id.DOI())
	for hop := 0; hop < 2; hop++ {
		body, finalURL, found, err := a.httpClient.GetBody(ctx, "libgen", page)
		if err != nil {
			return sources.Candidate{}, fmt.Errorf("libgen page: %w", err)
		}
		if !found {
			break
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return sources.Candidate{}, fmt.Errorf("parsing libgen page: %w", err)
		}
		base, err := url.Parse(finalURL)
		if err != nil {
			return sources.Candidate{}, fmt.Errorf("parsing libgen URL: %w", err)
		}

		if link := firstLink(doc, base, `a[href*="get.php"]`); link != "" {
			return sources.URL(link), nil
		}
		next := firstLink(doc, base, `a[href*="ads.php"]`)
		if next == "" {
			break
		}
		page = next
	}
	return sources.NotFound("no libgen entry"), nil
}

func firstLink(doc *goquery.Document, base *url.URL, selector string) string {
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return u.String()
}
