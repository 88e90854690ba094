// Package scihub scrapes PDF links from operator-configured Sci-Hub mirrors. Each mirror
// is its own adapter so that the priority list and skip set can address it.
package scihub

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
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

// embedSelectors locate the viewer element that carries the PDF source.
var embedSelectors = []string{"embed#pdf", "iframe#pdf", "#pdf", "div#article embed", "div#article iframe"}

var onclickLocation = regexp.MustCompile(`location\.href\s*=\s*['"]([^'"]+)['"]`)

// Config holds configuration for one mirror.
type Config struct {
	// Mirror is the 1-based index used in the source tag scihub_mirror_N.
	Mirror int
	// BaseURL is the mirror origin. There is no default.
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.Mirror == 0 {
		c.Mirror = 1
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Adapter implements sources.Adapter and sources.Prober for one mirror.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
	probe      *sources.CachedProbe
}

var (
	_ sources.Adapter = (*Adapter)(nil)
	_ sources.Prober  = (*Adapter)(nil)
)

// New creates a mirror adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: 1,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
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

// Name returns scihub_mirror_N.
func (a *Adapter) Name() domain.SourceName {
	return domain.SciHubMirror(a.config.Mirror)
}

// IsAvailable reports whether the mirror answered the one-time probe.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.probe.Available(ctx)
}

// FindCandidate loads the mirror page for the DOI and extracts the embedded PDF link.
func (a *Adapter) FindCandidate(ctx context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if a.config.BaseURL == "" {
		return sources.NotFound("mirror not configured"), nil
	}
	if id.DOI() == "" {
		return sources.NotFound("no DOI"), nil
	}

	pageURL := sources.JoinURL(a.config.BaseURL, "/"+id.DOI())
	body, finalURL, found, err := a.httpClient.GetBody(ctx, string(a.Name()), pageURL)
	if err != nil {
		return sources.Candidate{}, fmt.Errorf("%s page: %w", a.Name(), err)
	}
	if !found {
		return sources.NotFound("article not on mirror"), nil
	}

	link, err := ExtractPDFLink(body, finalURL)
	if err != nil {
		return sources.Candidate{}, err
	}
	if link == "" {
		return sources.NotFound("article not on mirror"), nil
	}
	return sources.URL(link), nil
}

// ExtractPDFLink returns the absolute PDF URL embedded in a mirror page, or "".
func ExtractPDFLink(page []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parsing mirror page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing mirror URL: %w", err)
	}

	for _, sel := range embedSelectors {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			return absolute(base, src), nil
		}
	}

	var link string
	doc.Find("[onclick]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		onclick, _ := s.Attr("onclick")
		if m := onclickLocation.FindStringSubmatch(onclick); m != nil {
			link = absolute(base, m[1])
			return false
		}
		return true
	})
	return link, nil
}

// absolute resolves a possibly protocol-relative reference and drops the viewer fragment.
func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}
