// Package fetch downloads candidate full-text URLs with size limits and SSRF protection.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/validate"
)

// maxRedirects bounds redirect chains; DOI resolution usually takes two or three hops.
const maxRedirects = 10

// blockedPrefixes are address ranges a fetched URL may never resolve to.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Result is a fetched payload.
type Result struct {
	// Content holds at most MaxBytes+1 bytes; see Truncated.
	Content []byte
	// ContentHash is the SHA-256 hex digest of Content.
	ContentHash string
	// ContentType is the media type from the response header, without parameters.
	ContentType string
	// FinalURL is the URL after following redirects.
	FinalURL string
	// Truncated is set when the body was longer than MaxBytes.
	Truncated bool
}

// IsHTML reports whether the payload is an HTML page, by header or by sniffing.
func (r *Result) IsHTML() bool {
	if r.ContentType == "text/html" || r.ContentType == "application/xhtml+xml" {
		return true
	}
	return validate.LooksLikeHTML(r.Content)
}

// Config holds fetcher configuration.
type Config struct {
	// Timeout bounds a single request. Default: 60 seconds.
	Timeout time.Duration
	// MaxBytes is the largest body read in full. One extra byte is read so that the
	// validator can see the payload is oversized. Default: 100 MiB.
	MaxBytes int64
	// UserAgent is the User-Agent header.
	UserAgent string
	// AllowPrivateNetworks disables the private-address checks. Tests only.
	AllowPrivateNetworks bool
}

// Fetcher performs GET requests for candidate URLs. It is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	maxBytes     int64
	userAgent    string
	allowPrivate bool
	lookup       func(ctx context.Context, host string) ([]netip.Addr, error)
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = validate.DefaultMaxPDFBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; Helixir-Fulltext/1.0; +https://helixir.io/bot)"
	}

	f := &Fetcher{
		maxBytes:     cfg.MaxBytes,
		userAgent:    cfg.UserAgent,
		allowPrivate: cfg.AllowPrivateNetworks,
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
	// The dialer re-checks the address actually connected to, so a hostname that
	// resolves differently after checkURL still cannot reach a private network.
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second, Control: f.controlDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	f.client = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return f.checkURL(req.Context(), req.URL)
		},
	}
	return f
}

// Fetch downloads rawURL. Network errors and non-2xx statuses are returned as errors
// matching domain.ErrDownloadFailed; private destinations match domain.ErrSSRF.
// The body is not validated here.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %w", domain.ErrDownloadFailed, err)
	}
	if err := f.checkURL(ctx, parsed); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf, application/xml;q=0.9, text/html;q=0.8, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrDownloadFailed, err)
	}

	sum := sha256.Sum256(content)
	return &Result{
		Content:     content,
		ContentHash: hex.EncodeToString(sum[:]),
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		FinalURL:    resp.Request.URL.String(),
		Truncated:   int64(len(content)) > f.maxBytes,
	}, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *StatusError) Unwrap() error {
	return domain.ErrDownloadFailed
}

func (f *Fetcher) checkURL(ctx context.Context, u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", domain.ErrSSRF, u.Scheme)
	}
	if f.allowPrivate {
		return nil
	}

	host := u.Hostname()
	if addr, err := netip.ParseAddr(host); err == nil {
		if IsBlockedAddr(addr) {
			return fmt.Errorf("%w: %s", domain.ErrSSRF, host)
		}
		return nil
	}

	addrs, err := f.lookup(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %w", domain.ErrDownloadFailed, host, err)
	}
	for _, addr := range addrs {
		if IsBlockedAddr(addr) {
			return fmt.Errorf("%w: %s resolves to %s", domain.ErrSSRF, host, addr)
		}
	}
	return nil
}

// controlDial runs before every connection with the resolved destination address.
func (f *Fetcher) controlDial(_, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: unparseable dial address %q", domain.ErrSSRF, address)
	}
	if IsBlockedAddr(ap.Addr()) {
		return fmt.Errorf("%w: connection to %s", domain.ErrSSRF, ap.Addr())
	}
	return nil
}

// IsBlockedAddr reports whether addr is loopback, private, link-local or otherwise
// not publicly routable.
func IsBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsPrivate() || addr.IsUnspecified() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
	}
	return mt
}
