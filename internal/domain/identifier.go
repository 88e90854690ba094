package domain

import (
	"encoding/json"
	"strings"
)

// IdentifierKind names which field of a PublicationIdentifier is its primary key.
type IdentifierKind string

const (
	IdentifierKindDOI         IdentifierKind = "doi"
	IdentifierKindPMID        IdentifierKind = "pmid"
	IdentifierKindPMCID       IdentifierKind = "pmc"
	IdentifierKindArXiv       IdentifierKind = "arxiv"
	IdentifierKindContentHash IdentifierKind = "hash"
)

// IdentifierFields is the raw identifier bundle supplied by a metadata collaborator.
// All fields are optional. Title, Authors and Year are only used to derive a content hash.
type IdentifierFields struct {
	DOI     string   `json:"doi,omitempty" validate:"omitempty,max=256"`
	PMID    string   `json:"pmid,omitempty" validate:"omitempty,max=32"`
	PMCID   string   `json:"pmc_id,omitempty" validate:"omitempty,max=32"`
	ArXivID string   `json:"arxiv_id,omitempty" validate:"omitempty,max=64"`
	Title   string   `json:"title,omitempty" validate:"omitempty,max=2000"`
	Authors []string `json:"authors,omitempty" validate:"omitempty,max=500"`
	Year    int      `json:"year,omitempty" validate:"omitempty,min=0,max=3000"`
}

// PublicationIdentifier is an immutable, validated publication identity.
// At least one of DOI, PMID, PMC-ID, arXiv-ID or content hash is always set.
type PublicationIdentifier struct {
	doi         string
	pmid        string
	pmcID       string
	arxivID     string
	contentHash string
	title       string
	authors     []string
	year        int
}

// NewPublicationIdentifier builds an identifier from already-normalized parts.
// contentHash may be empty when a formal identifier is present.
// It fails with an IdentifierError when no usable identifier remains after trimming.
func NewPublicationIdentifier(f IdentifierFields, contentHash string) (PublicationIdentifier, error) {
	id := PublicationIdentifier{
		doi:         strings.TrimSpace(f.DOI),
		pmid:        strings.TrimSpace(f.PMID),
		pmcID:       strings.TrimSpace(f.PMCID),
		arxivID:     strings.TrimSpace(f.ArXivID),
		contentHash: strings.TrimSpace(contentHash),
		title:       strings.TrimSpace(f.Title),
		year:        f.Year,
	}
	if len(f.Authors) > 0 {
		id.authors = append([]string(nil), f.Authors...)
	}
	if id.Primary() == "" {
		return PublicationIdentifier{}, NewIdentifierError("no DOI, PMID, PMC-ID, arXiv-ID or content hash")
	}
	return id, nil
}

func (p PublicationIdentifier) DOI() string         { return p.doi }
func (p PublicationIdentifier) PMID() string        { return p.pmid }
func (p PublicationIdentifier) PMCID() string       { return p.pmcID }
func (p PublicationIdentifier) ArXivID() string     { return p.arxivID }
func (p PublicationIdentifier) ContentHash() string { return p.contentHash }
func (p PublicationIdentifier) Title() string       { return p.title }
func (p PublicationIdentifier) Year() int           { return p.year }

// Authors returns a copy of the author list.
func (p PublicationIdentifier) Authors() []string {
	if len(p.authors) == 0 {
		return nil
	}
	return append([]string(nil), p.authors...)
}

// IsZero reports whether p was never constructed.
func (p PublicationIdentifier) IsZero() bool {
	return p.Primary() == ""
}

// Primary returns the highest-priority identifier value:
// DOI > PMID > PMC-ID > arXiv-ID > content hash.
func (p PublicationIdentifier) Primary() string {
	_, v := p.primary()
	return v
}

// Kind returns which identifier Primary came from.
func (p PublicationIdentifier) Kind() IdentifierKind {
	k, _ := p.primary()
	return k
}

// Key returns a prefixed, case-normalized key suitable for storage and deduplication,
// e.g. "doi:10.1038/nature12373" or "hash:0123456789abcdef".
func (p PublicationIdentifier) Key() string {
	k, v := p.primary()
	if v == "" {
		return ""
	}
	if k == IdentifierKindDOI || k == IdentifierKindPMCID || k == IdentifierKindArXiv {
		v = strings.ToLower(v)
	}
	return string(k) + ":" + v
}

func (p PublicationIdentifier) primary() (IdentifierKind, string) {
	switch {
	case p.doi != "":
		return IdentifierKindDOI, p.doi
	case p.pmid != "":
		return IdentifierKindPMID, p.pmid
	case p.pmcID != "":
		return IdentifierKindPMCID, p.pmcID
	case p.arxivID != "":
		return IdentifierKindArXiv, p.arxivID
	case p.contentHash != "":
		return IdentifierKindContentHash, p.contentHash
	default:
		return "", ""
	}
}

// Fields returns the identifier as a plain bundle.
func (p PublicationIdentifier) Fields() IdentifierFields {
	return IdentifierFields{
		DOI:     p.doi,
		PMID:    p.pmid,
		PMCID:   p.pmcID,
		ArXivID: p.arxivID,
		Title:   p.title,
		Authors: p.Authors(),
		Year:    p.year,
	}
}

type identifierJSON struct {
	IdentifierFields
	ContentHash string `json:"content_hash,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p PublicationIdentifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(identifierJSON{IdentifierFields: p.Fields(), ContentHash: p.contentHash})
}

// UnmarshalJSON implements json.Unmarshaler and re-applies the construction invariant.
func (p *PublicationIdentifier) UnmarshalJSON(data []byte) error {
	var raw identifierJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := NewPublicationIdentifier(raw.IdentifierFields, raw.ContentHash)
	if err != nil {
		return err
	}
	*p = id
	return nil
}

// ExtractPrimaryIdentifier returns the first non-empty identifier in priority order
// DOI > PMID > PMC-ID > arXiv-ID, or "" when none is present.
func ExtractPrimaryIdentifier(doi, pmid, pmcID, arxivID string) string {
	for _, v := range []string{doi, pmid, pmcID, arxivID} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
