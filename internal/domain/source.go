package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SourceName identifies one integrated full-text source.
// These values are stored in acquisition_attempts.source and travel in skip sets.
type SourceName string

const (
	SourceInstitutional SourceName = "institutional"
	SourcePMC           SourceName = "pmc"
	SourceUnpaywall     SourceName = "unpaywall"
	SourceCORE          SourceName = "core"
	SourceOpenAlex      SourceName = "openalex"
	SourceCrossref      SourceName = "crossref"
	SourceBioRxiv       SourceName = "biorxiv"
	SourceArXiv         SourceName = "arxiv"
	SourceLibGen        SourceName = "libgen"
	SourceDOIRedirect   SourceName = "generic_doi_redirect"
)

// sciHubMirrorPrefix is the token prefix for numbered Sci-Hub mirrors (scihub_mirror_1, ...).
const sciHubMirrorPrefix = "scihub_mirror_"

// SciHubMirror returns the source name of the n-th configured Sci-Hub mirror (1-based).
func SciHubMirror(n int) SourceName {
	return SourceName(sciHubMirrorPrefix + strconv.Itoa(n))
}

// fixedSources lists every source token that is not a numbered mirror.
var fixedSources = map[SourceName]struct{}{
	SourceInstitutional: {},
	SourcePMC:           {},
	SourceUnpaywall:     {},
	SourceCORE:          {},
	SourceOpenAlex:      {},
	SourceCrossref:      {},
	SourceBioRxiv:       {},
	SourceArXiv:         {},
	SourceLibGen:        {},
	SourceDOIRedirect:   {},
}

// String returns the token form of the source name.
func (s SourceName) String() string {
	return string(s)
}

// IsValid reports whether s is a known source token.
func (s SourceName) IsValid() bool {
	if _, ok := fixedSources[s]; ok {
		return true
	}
	_, ok := s.MirrorIndex()
	return ok
}

// MirrorIndex returns the mirror number for scihub_mirror_N tokens.
func (s SourceName) MirrorIndex() (int, bool) {
	rest, ok := strings.CutPrefix(string(s), sciHubMirrorPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// ParseSourceName parses a source token, accepting surrounding whitespace and any case.
func ParseSourceName(s string) (SourceName, error) {
	name := SourceName(strings.ToLower(strings.TrimSpace(s)))
	if !name.IsValid() {
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidInput, s)
	}
	return name, nil
}

// DefaultPriority is the source order used when no priority is configured.
// Institutional access and PMC go first: they have the highest hit rate and the
// lowest legal and rate-limit risk.
func DefaultPriority() []SourceName {
	return []SourceName{
		SourceInstitutional,
		SourcePMC,
		SourceUnpaywall,
		SourceCORE,
		SourceOpenAlex,
		SourceCrossref,
		SourceBioRxiv,
		SourceArXiv,
		SciHubMirror(1),
		SciHubMirror(2),
		SourceLibGen,
		SourceDOIRedirect,
	}
}
