// Package landing extracts the real download link from publisher landing pages.
package landing

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Family identifies a publisher whose landing pages share markup.
type Family string

const (
	FamilyNature   Family = "nature"
	FamilyElsevier Family = "elsevier"
	FamilyWiley    Family = "wiley"
	FamilyPLOS     Family = "plos"
	FamilyGeneric  Family = "generic"
)

// selector is one CSS query plus the attribute that holds the link.
type selector struct {
	query string
	attr  string
}

// domainFamilies maps registrable domains to publisher families.
var domainFamilies = []struct {
	suffix string
	family Family
}{
	{"nature.com", FamilyNature},
	{"springer.com", FamilyNature},
	{"springeropen.com", FamilyNature},
	{"biomedcentral.com", FamilyNature},
	{"sciencedirect.com", FamilyElsevier},
	{"elsevier.com", FamilyElsevier},
	{"wiley.com", FamilyWiley},
	{"plos.org", FamilyPLOS},
}

// metaFamilies maps publisher names found in meta tags to families.
var metaFamilies = []struct {
	needle string
	family Family
}{
	{"nature", FamilyNature},
	{"springer", FamilyNature},
	{"biomed central", FamilyNature},
	{"biomedcentral", FamilyNature},
	{"elsevier", FamilyElsevier},
	{"wiley", FamilyWiley},
	{"public library of science", FamilyPLOS},
	{"plos", FamilyPLOS},
}

var publisherMetaSelectors = []string{
	`meta[name="citation_publisher"]`,
	`meta[name="dc.publisher"]`,
	`meta[name="DC.publisher"]`,
	`meta[property="og:site_name"]`,
}

var familySelectors = map[Family][]selector{
	FamilyNature: {
		{`a.c-pdf-download__link`, "href"},
		{`a[data-article-pdf]`, "href"},
		{`a[data-track-action="download pdf"]`, "href"},
	},
	FamilyElsevier: {
		{`a.pdf-download-btn-link`, "href"},
		{`a#pdfLink`, "href"},
		{`a[href*="/pdfft"]`, "href"},
	},
	FamilyWiley: {
		{`a.pdf-download`, "href"},
		{`a[href*="/doi/pdfdirect/"]`, "href"},
		{`a[href*="/doi/pdf/"]`, "href"},
	},
	FamilyPLOS: {
		{`a#downloadPdf`, "href"},
		{`a[href*="type=printable"]`, "href"},
	},
}

var genericSelectors = []selector{
	{`a[href$=".pdf"]`, "href"},
	{`a[href$=".PDF"]`, "href"},
	{`link[type="application/pdf"]`, "href"},
	{`meta[name="citation_pdf_url"]`, "content"},
}

// rejectMarkers disqualify a resolved candidate URL.
var rejectMarkers = []string{
	"?format=xml",
	"format=epub",
	".htm",
	"facebook",
	"twitter",
	"linkedin",
	"mailto:",
	"email",
}

// Extractor finds PDF links in landing pages. Its selector tables are static, so one
// instance can be shared by any number of goroutines.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPDFURL returns the absolute URL of the full-text PDF linked from a landing
// page, or "" when no publisher-specific or generic pattern yields an acceptable link.
// A page without a usable link is an expected outcome, not an error.
func (e *Extractor) ExtractPDFURL(html, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	family := e.DetectFamily(doc, base)
	selectors := append(append([]selector(nil), familySelectors[family]...), genericSelectors...)

	for _, sel := range selectors {
		var found string
		doc.Find(sel.query).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			raw, ok := s.Attr(sel.attr)
			if !ok {
				return true
			}
			if candidate := resolveCandidate(base, raw); candidate != "" {
				found = candidate
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// DetectFamily picks the publisher family from the page host, then from publisher
// meta tags, defaulting to generic.
func (e *Extractor) DetectFamily(doc *goquery.Document, base *url.URL) Family {
	if f := familyForHost(base.Hostname()); f != FamilyGeneric {
		return f
	}
	if doc == nil {
		return FamilyGeneric
	}
	for _, q := range publisherMetaSelectors {
		content, ok := doc.Find(q).First().Attr("content")
		if !ok {
			continue
		}
		content = strings.ToLower(content)
		for _, m := range metaFamilies {
			if strings.Contains(content, m.needle) {
				return m.family
			}
		}
	}
	return FamilyGeneric
}

func familyForHost(host string) Family {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range domainFamilies {
		if host == d.suffix || strings.HasSuffix(host, "."+d.suffix) {
			return d.family
		}
	}
	return FamilyGeneric
}

// resolveCandidate makes raw absolute against base and applies the reject filters.
func resolveCandidate(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(strings.ToLower(raw), "javascript:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	out := resolved.String()
	lower := strings.ToLower(out)
	for _, marker := range rejectMarkers {
		if strings.Contains(lower, marker) {
			return ""
		}
	}
	return out
}
