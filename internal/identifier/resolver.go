// Package identifier turns partial bibliographic identifiers into a canonical
// PublicationIdentifier, falling back to a content hash when no DOI, PMID,
// PMC-ID or arXiv-ID is available.
package identifier

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// DefaultAuthorLimit is the number of author surnames folded into a content hash.
const DefaultAuthorLimit = 3

// contentHashLength is the number of hex characters kept from the SHA-256 digest.
const contentHashLength = 16

var (
	pmidPattern     = regexp.MustCompile(`^\d{1,10}$`)
	pmcPattern      = regexp.MustCompile(`(?i)^(?:pmc)?(\d{1,10})$`)
	arxivNewPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(?:v\d+)?$`)
	arxivOldPattern = regexp.MustCompile(`^[a-z\-]+(?:\.[A-Z]{2})?/\d{7}(?:v\d+)?$`)
)

// Config controls identifier resolution.
type Config struct {
	// AuthorLimit is the maximum number of author surnames in the content hash.
	AuthorLimit int
}

// Resolver produces canonical publication identifiers. It holds no mutable state and
// is safe for concurrent use.
type Resolver struct {
	authorLimit int
}

// NewResolver creates a Resolver. A non-positive AuthorLimit falls back to DefaultAuthorLimit.
func NewResolver(cfg Config) *Resolver {
	if cfg.AuthorLimit <= 0 {
		cfg.AuthorLimit = DefaultAuthorLimit
	}
	return &Resolver{authorLimit: cfg.AuthorLimit}
}

// Resolve normalizes an identifier bundle.
//
// Formal identifiers are trimmed and checked for shape; malformed values are treated
// as absent. A content hash is derived whenever the title normalizes to a non-empty
// string. Resolve fails with an IdentifierError when neither a formal identifier nor
// a content hash is available.
func (r *Resolver) Resolve(f domain.IdentifierFields) (domain.PublicationIdentifier, error) {
	clean := domain.IdentifierFields{
		DOI:     NormalizeDOI(f.DOI),
		PMID:    NormalizePMID(f.PMID),
		PMCID:   NormalizePMCID(f.PMCID),
		ArXivID: NormalizeArXivID(f.ArXivID),
		Title:   strings.TrimSpace(f.Title),
		Authors: f.Authors,
		Year:    f.Year,
	}

	hash := r.ContentHash(clean.Title, clean.Authors, clean.Year)

	hasFormal := domain.ExtractPrimaryIdentifier(clean.DOI, clean.PMID, clean.PMCID, clean.ArXivID) != ""
	if !hasFormal && hash == "" {
		if clean.Title == "" {
			return domain.PublicationIdentifier{}, domain.NewIdentifierError("no formal identifier and no title")
		}
		return domain.PublicationIdentifier{}, domain.NewIdentifierError("no formal identifier and title has no content")
	}

	return domain.NewPublicationIdentifier(clean, hash)
}

// ContentHash derives a 16-hex-character key from the normalized title, the surnames of
// the first AuthorLimit authors (sorted) and the year. It returns "" when the title
// normalizes to nothing. Authors past the limit never affect the key, so a truncated
// "et al." list hashes like the full one.
func (r *Resolver) ContentHash(title string, authors []string, year int) string {
	normTitle := NormalizeTitle(title)
	if normTitle == "" {
		return ""
	}

	surnames := make([]string, 0, r.authorLimit)
	for _, a := range authors {
		if len(surnames) == r.authorLimit {
			break
		}
		if s := Surname(a); s != "" {
			surnames = append(surnames, s)
		}
	}
	sort.Strings(surnames)

	yearPart := ""
	if year > 0 {
		yearPart = strconv.Itoa(year)
	}

	sum := sha256.Sum256([]byte(normTitle + "|" + strings.Join(surnames, ",") + "|" + yearPart))
	return hex.EncodeToString(sum[:])[:contentHashLength]
}

// NormalizeDOI strips resolver prefixes and returns "" unless the value looks like a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			doi = strings.TrimSpace(doi[len(prefix):])
			break
		}
	}
	if !strings.HasPrefix(doi, "10.") || !strings.Contains(doi, "/") {
		return ""
	}
	return doi
}

// NormalizePMID returns the PMID if it is purely numeric.
func NormalizePMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	if !pmidPattern.MatchString(pmid) {
		return ""
	}
	return pmid
}

// NormalizePMCID returns the PMC identifier in "PMC<digits>" form.
func NormalizePMCID(pmcID string) string {
	m := pmcPattern.FindStringSubmatch(strings.TrimSpace(pmcID))
	if m == nil {
		return ""
	}
	return "PMC" + m[1]
}

// NormalizeArXivID strips an "arXiv:" prefix or abs/pdf URL and validates the identifier.
func NormalizeArXivID(id string) string {
	id = strings.TrimSpace(id)
	lower := strings.ToLower(id)
	for _, prefix := range []string{"arxiv:", "https://arxiv.org/abs/", "http://arxiv.org/abs/", "https://arxiv.org/pdf/"} {
		if strings.HasPrefix(lower, prefix) {
			id = id[len(prefix):]
			break
		}
	}
	id = strings.TrimSuffix(id, ".pdf")
	if arxivNewPattern.MatchString(id) || arxivOldPattern.MatchString(id) {
		return id
	}
	return ""
}
