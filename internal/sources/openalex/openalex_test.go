package openalex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

// newTestAdapter creates an adapter configured for testing with the given server URL.
func newTestAdapter(serverURL string) *Adapter {
	return NewWithHTTPClient(Config{BaseURL: serverURL, Email: "test@example.com"},
		sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:    5 * time.Second,
			RateLimit:  100,
			BurstSize:  100,
			RetryDelay: time.Millisecond,
		}))
}

func TestAdapter_FindCandidate(t *testing.T) {
	works := map[string]Work{
		"/works/doi:10.1038/nature12373": {
			ID:             "https://openalex.org/W2741809807",
			BestOALocation: &Location{IsOA: true, PDFURL: "https://europepmc.org/articles/pmc4022601?pdf=render"},
		},
		"/works/pmid:123": {
			Locations: []Location{
				{IsOA: false, PDFURL: "https://publisher.example/paywalled.pdf"},
				{IsOA: true, PDFURL: "https://repo.example/open.pdf"},
			},
		},
		"/works/pmcid:PMC9": {
			OpenAccess: &OpenAccess{IsOA: true, OAURL: "https://journal.example/article/9"},
		},
		"/works/doi:10.1000/closed": {
			OpenAccess: &OpenAccess{IsOA: false},
		},
	}

	var gotMailto string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMailto = r.URL.Query().Get("mailto")
		work, ok := works[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(work)
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	ctx := context.Background()

	tests := []struct {
		name     string
		fields   domain.IdentifierFields
		wantKind sources.CandidateKind
		wantURL  string
	}{
		{
			name:     "best oa location by doi",
			fields:   domain.IdentifierFields{DOI: "10.1038/nature12373"},
			wantKind: sources.KindURL,
			wantURL:  "https://europepmc.org/articles/pmc4022601?pdf=render",
		},
		{
			name:     "first open location by pmid",
			fields:   domain.IdentifierFields{PMID: "123"},
			wantKind: sources.KindURL,
			wantURL:  "https://repo.example/open.pdf",
		},
		{
			name:     "oa url by pmcid",
			fields:   domain.IdentifierFields{PMCID: "PMC9"},
			wantKind: sources.KindURL,
			wantURL:  "https://journal.example/article/9",
		},
		{
			name:     "closed",
			fields:   domain.IdentifierFields{DOI: "10.1000/closed"},
			wantKind: sources.KindNotFound,
		},
		{
			name:     "unknown",
			fields:   domain.IdentifierFields{DOI: "10.1000/unknown"},
			wantKind: sources.KindNotFound,
		},
		{
			name:     "arxiv only",
			fields:   domain.IdentifierFields{ArXivID: "2101.00001"},
			wantKind: sources.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := domain.NewPublicationIdentifier(tt.fields, "")
			require.NoError(t, err)

			c, err := a.FindCandidate(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, c.Kind)
			assert.Equal(t, tt.wantURL, c.URL)
		})
	}

	assert.Equal(t, "test@example.com", gotMailto)
}

func TestAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	id, err := domain.NewPublicationIdentifier(domain.IdentifierFields{DOI: "10.1/x"}, "")
	require.NoError(t, err)

	_, err = newTestAdapter(server.URL).FindCandidate(context.Background(), id)
	assert.Error(t, err)
}
