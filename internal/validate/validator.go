// Package validate decides whether downloaded bytes are a genuine full-text artifact
// or a false positive such as an HTML error page served with a 200 status.
package validate

import (
	"bytes"
	"fmt"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

const (
	// DefaultMinPDFBytes rejects payloads too small to be a real article.
	DefaultMinPDFBytes = 1024

	// DefaultMaxPDFBytes rejects corrupt or oversized payloads (100 MiB).
	DefaultMaxPDFBytes = 100 * 1024 * 1024

	// DefaultMinXMLBytes is the smallest accepted XML full text.
	DefaultMinXMLBytes = 512
)

// pdfSignature is the 5-byte header every PDF begins with.
var pdfSignature = []byte("%PDF-")

// Reason explains why a payload was rejected.
type Reason string

const (
	ReasonEmpty        Reason = "empty"
	ReasonTooSmall     Reason = "too-small"
	ReasonTooLarge     Reason = "too-large"
	ReasonBadSignature Reason = "bad-signature"
	ReasonHTML         Reason = "html-payload"
	ReasonUnreadable   Reason = "unreadable"
	ReasonNoPages      Reason = "no-pages"
)

// Result is the verdict for one payload.
type Result struct {
	OK     bool
	Reason Reason
	Detail string
	// Kind is the content kind of an accepted payload, or html-rejected when the
	// payload was refused because it is an HTML page.
	Kind      domain.ContentKind
	PageCount int
}

// String renders the rejection reason for logs and attempt records.
func (r Result) String() string {
	if r.OK {
		return "ok"
	}
	if r.Detail != "" {
		return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
	}
	return string(r.Reason)
}

// Config holds payload bounds.
type Config struct {
	MinPDFBytes int
	MaxPDFBytes int
	MinXMLBytes int

	// DeepInspect parses accepted PDFs and requires at least one page.
	DeepInspect bool
}

// DefaultConfig returns the standard bounds.
func DefaultConfig() Config {
	return Config{
		MinPDFBytes: DefaultMinPDFBytes,
		MaxPDFBytes: DefaultMaxPDFBytes,
		MinXMLBytes: DefaultMinXMLBytes,
	}
}

// Validator checks payloads against the configured bounds. It is stateless and safe
// for concurrent use.
type Validator struct {
	config Config
}

// New creates a Validator; zero-valued bounds take their defaults.
func New(cfg Config) *Validator {
	if cfg.MinPDFBytes <= 0 {
		cfg.MinPDFBytes = DefaultMinPDFBytes
	}
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = DefaultMaxPDFBytes
	}
	if cfg.MinXMLBytes <= 0 {
		cfg.MinXMLBytes = DefaultMinXMLBytes
	}
	return &Validator{config: cfg}
}

// Validate checks data against the expected content kind.
func (v *Validator) Validate(data []byte, expected domain.ContentKind) Result {
	switch expected {
	case domain.ContentKindXML:
		return v.validateXML(data)
	default:
		return v.validatePDF(data)
	}
}

func (v *Validator) validatePDF(data []byte) Result {
	if len(data) == 0 {
		return reject(ReasonEmpty, "")
	}
	if LooksLikeHTML(data) {
		return Result{Reason: ReasonHTML, Kind: domain.ContentKindHTMLRejected}
	}
	if len(data) < v.config.MinPDFBytes {
		return reject(ReasonTooSmall, fmt.Sprintf("%d < %d bytes", len(data), v.config.MinPDFBytes))
	}
	if len(data) > v.config.MaxPDFBytes {
		return reject(ReasonTooLarge, fmt.Sprintf("%d > %d bytes", len(data), v.config.MaxPDFBytes))
	}
	if !bytes.HasPrefix(data, pdfSignature) {
		return reject(ReasonBadSignature, "missing %PDF- header")
	}

	res := Result{OK: true, Kind: domain.ContentKindPDF}
	if v.config.DeepInspect {
		pages, err := PageCount(data)
		if err != nil {
			return reject(ReasonUnreadable, err.Error())
		}
		if pages < 1 {
			return reject(ReasonNoPages, "")
		}
		res.PageCount = pages
	}
	return res
}

func (v *Validator) validateXML(data []byte) Result {
	if len(data) == 0 {
		return reject(ReasonEmpty, "")
	}
	if LooksLikeHTML(data) {
		return Result{Reason: ReasonHTML, Kind: domain.ContentKindHTMLRejected}
	}
	if len(data) < v.config.MinXMLBytes {
		return reject(ReasonTooSmall, fmt.Sprintf("%d < %d bytes", len(data), v.config.MinXMLBytes))
	}
	if len(data) > v.config.MaxPDFBytes {
		return reject(ReasonTooLarge, fmt.Sprintf("%d > %d bytes", len(data), v.config.MaxPDFBytes))
	}
	head := bytes.TrimLeft(sniffWindow(data), "\ufeff \t\r\n")
	if !bytes.HasPrefix(head, []byte("<?xml")) && !bytes.HasPrefix(head, []byte("<article")) &&
		!bytes.HasPrefix(head, []byte("<!DOCTYPE article")) {
		return reject(ReasonBadSignature, "missing XML declaration or article root")
	}
	return Result{OK: true, Kind: domain.ContentKindXML}
}

func reject(reason Reason, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

// sniffWindow returns the leading bytes used for signature checks.
func sniffWindow(data []byte) []byte {
	const window = 512
	if len(data) > window {
		return data[:window]
	}
	return data
}

// LooksLikeHTML reports whether the payload starts like an HTML document.
func LooksLikeHTML(data []byte) bool {
	head := bytes.ToLower(bytes.TrimLeft(sniffWindow(data), "\ufeff \t\r\n"))
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.HasPrefix(head, []byte("<head")) ||
		bytes.HasPrefix(head, []byte("<body"))
}
