package landing

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Nature(t *testing.T) {
	e := NewExtractor()
	html := `<html><body>
		<a href="https://www.facebook.com/sharer?u=x">Share</a>
		<a class="c-pdf-download__link" href="/articles/x.pdf">Download PDF</a>
	</body></html>`

	got := e.ExtractPDFURL(html, "https://www.nature.com/articles/x")
	assert.Equal(t, "https://www.nature.com/articles/x.pdf", got)
}

func TestExtractor_NoSelectorsReturnsEmpty(t *testing.T) {
	e := NewExtractor()
	html := `<html><body>
		<a href="/about">About</a>
		<a href="/articles/x/figures">Figures</a>
	</body></html>`

	assert.Equal(t, "", e.ExtractPDFURL(html, "https://www.nature.com/articles/x"))
	assert.Equal(t, "", e.ExtractPDFURL(html, "https://example.org/paper"))
}

func TestExtractor_GenericFallbacks(t *testing.T) {
	e := NewExtractor()

	t.Run("anchor ending in pdf", func(t *testing.T) {
		html := `<a href="files/paper.pdf">PDF</a>`
		assert.Equal(t, "https://repo.example.edu/items/42/files/paper.pdf",
			e.ExtractPDFURL(html, "https://repo.example.edu/items/42/"))
	})

	t.Run("link element", func(t *testing.T) {
		html := `<html><head><link rel="alternate" type="application/pdf" href="/download/42"></head></html>`
		assert.Equal(t, "https://repo.example.edu/download/42",
			e.ExtractPDFURL(html, "https://repo.example.edu/items/42"))
	})

	t.Run("citation_pdf_url meta", func(t *testing.T) {
		html := `<html><head><meta name="citation_pdf_url" content="https://cdn.example.org/42/full"></head></html>`
		assert.Equal(t, "https://cdn.example.org/42/full",
			e.ExtractPDFURL(html, "https://journal.example.org/42"))
	})

	t.Run("publisher selectors come before generic", func(t *testing.T) {
		html := `<html><body>
			<a href="/supplementary/data.pdf">Supplement</a>
			<a id="downloadPdf" href="/article/file?id=10.1371/journal.pone.1&type=printable">PDF</a>
		</body></html>`
		assert.Equal(t, "https://journals.plos.org/article/file?id=10.1371/journal.pone.1&type=printable",
			e.ExtractPDFURL(html, "https://journals.plos.org/plosone/article?id=10.1371/journal.pone.1"))
	})
}

func TestExtractor_RejectsMismatchedCandidates(t *testing.T) {
	e := NewExtractor()
	html := `<html><head>
		<meta name="citation_pdf_url" content="https://example.org/x.pdf?format=xml">
	</head><body>
		<a href="https://twitter.com/intent/tweet?url=x.pdf">Tweet</a>
		<a href="/reader/epub.pdf?format=epub">EPUB</a>
		<a href="/x/index.htm#x.pdf">Index</a>
		<a href="mailto:someone@example.org?subject=x.pdf">Mail</a>
	</body></html>`

	assert.Equal(t, "", e.ExtractPDFURL(html, "https://example.org/x"))

	html += `<a href="/real/x.pdf">PDF</a>`
	assert.Equal(t, "https://example.org/real/x.pdf", e.ExtractPDFURL(html, "https://example.org/x"))
}

func TestExtractor_DetectFamily(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		name string
		base string
		html string
		want Family
	}{
		{name: "nature", base: "https://www.nature.com/articles/x", want: FamilyNature},
		{name: "springer link", base: "https://link.springer.com/article/x", want: FamilyNature},
		{name: "bmc", base: "https://bmcbiol.biomedcentral.com/articles/x", want: FamilyNature},
		{name: "sciencedirect", base: "https://www.sciencedirect.com/science/article/pii/X", want: FamilyElsevier},
		{name: "wiley", base: "https://onlinelibrary.wiley.com/doi/10.1002/x", want: FamilyWiley},
		{name: "plos", base: "https://journals.plos.org/plosone/article", want: FamilyPLOS},
		{
			name: "meta fallback",
			base: "https://doi.example.net/x",
			html: `<meta name="citation_publisher" content="Elsevier BV">`,
			want: FamilyElsevier,
		},
		{name: "lookalike domain", base: "https://notnature.com/x", want: FamilyGeneric},
		{name: "generic", base: "https://example.org/x", want: FamilyGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head>" + tt.html + "</head></html>"))
			require.NoError(t, err)
			base, err := url.Parse(tt.base)
			require.NoError(t, err)

			assert.Equal(t, tt.want, e.DetectFamily(doc, base))
		})
	}
}
