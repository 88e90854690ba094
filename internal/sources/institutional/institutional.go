// Package institutional routes DOI resolution through an institution's EZproxy so that
// subscription content is reachable from the campus network.
package institutional

import (
	"context"
	"net/url"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

// DefaultDOIResolver is the DOI resolver wrapped by the proxy.
const DefaultDOIResolver = "https://doi.org/"

// Config holds configuration for the institutional adapter.
type Config struct {
	// ProxyPrefix is the EZproxy login prefix, e.g. "https://ezproxy.example.edu/login?url=".
	ProxyPrefix string
	// ProbeURL is checked once for reachability. Defaults to the proxy origin.
	ProbeURL    string
	DOIResolver string
	Timeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.DOIResolver == "" {
		c.DOIResolver = DefaultDOIResolver
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.ProbeURL == "" && c.ProxyPrefix != "" {
		if u, err := url.Parse(c.ProxyPrefix); err == nil && u.Host != "" {
			c.ProbeURL = u.Scheme + "://" + u.Host + "/"
		}
	}
}

// Adapter implements sources.Adapter and sources.Prober for an institutional proxy.
type Adapter struct {
	config     Config
	httpClient *sources.HTTPClient
	probe      *sources.CachedProbe
}

var (
	_ sources.Adapter = (*Adapter)(nil)
	_ sources.Prober  = (*Adapter)(nil)
)

// New creates an institutional adapter.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: 2,
		BurstSize: 2,
	}))
}

// NewWithHTTPClient creates an adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Adapter {
	cfg.applyDefaults()
	a := &Adapter{config: cfg, httpClient: httpClient}
	a.probe = sources.NewCachedProbe(a.check)
	return a
}

// Name returns the source tag.
func (a *Adapter) Name() domain.SourceName {
	return domain.SourceInstitutional
}

// IsAvailable reports whether the proxy answered the one-time probe.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.probe.Available(ctx)
}

func (a *Adapter) check(ctx context.Context) bool {
	if a.config.ProxyPrefix == "" || a.config.ProbeURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return a.httpClient.Reachable(ctx, a.config.ProbeURL)
}

// FindCandidate returns the proxied DOI URL. The proxy usually lands on the publisher
// page, which the orchestrator follows to the PDF.
func (a *Adapter) FindCandidate(_ context.Context, id domain.PublicationIdentifier) (sources.Candidate, error) {
	if a.config.ProxyPrefix == "" {
		return sources.NotFound("no institutional proxy configured"), nil
	}
	if id.DOI() == "" {
		return sources.NotFound("no DOI"), nil
	}
	return sources.URL(a.config.ProxyPrefix + a.config.DOIResolver + id.DOI()), nil
}
