package openalex

// Work is the subset of an OpenAlex work record used to locate full text.
type Work struct {
	ID              string      `json:"id"`
	DOI             string      `json:"doi"`
	Title           string      `json:"title"`
	PublicationYear int         `json:"publication_year"`
	OpenAccess      *OpenAccess `json:"open_access"`
	BestOALocation  *Location   `json:"best_oa_location"`
	PrimaryLocation *Location   `json:"primary_location"`
	Locations       []Location  `json:"locations"`
	IDs             IDs         `json:"ids"`
}

// OpenAccess contains open access information for a work.
type OpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAURL    string `json:"oa_url"`
	OAStatus string `json:"oa_status"`
}

// Location represents where a work is available.
type Location struct {
	IsOA           bool    `json:"is_oa"`
	LandingPageURL string  `json:"landing_page_url"`
	PDFURL         string  `json:"pdf_url"`
	Version        string  `json:"version"`
	Source         *Source `json:"source"`
}

// Source represents a publication venue (journal, repository, etc.).
type Source struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// IDs contains the external identifiers OpenAlex knows for a work.
type IDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
	PMID     string `json:"pmid"`
	PMCID    string `json:"pmcid"`
}
