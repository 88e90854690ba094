package unpaywall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/sources"
)

func newTestAdapter(serverURL string) *Adapter {
	return NewWithHTTPClient(Config{BaseURL: serverURL, Email: "test@example.com"},
		sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:    5 * time.Second,
			RateLimit:  100,
			BurstSize:  100,
			RetryDelay: time.Millisecond,
		}))
}

func doiID(t *testing.T, doi string) domain.PublicationIdentifier {
	t.Helper()
	id, err := domain.NewPublicationIdentifier(domain.IdentifierFields{DOI: doi}, "")
	require.NoError(t, err)
	return id
}

func TestAdapter_FindCandidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test@example.com", r.URL.Query().Get("email"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/10.1038/nature12373":
			_, _ = w.Write([]byte(`{
				"doi": "10.1038/nature12373",
				"is_oa": true,
				"best_oa_location": {"url": "https://europepmc.org/articles/pmc4022601", "url_for_pdf": "https://europepmc.org/articles/pmc4022601?pdf=render"}
			}`))
		case "/v2/10.1000/landing":
			_, _ = w.Write([]byte(`{
				"is_oa": true,
				"best_oa_location": {"url_for_landing_page": "https://repo.example.edu/item/1"},
				"oa_locations": [{"url_for_landing_page": "https://repo.example.edu/item/1"}]
			}`))
		case "/v2/10.1000/second":
			_, _ = w.Write([]byte(`{
				"is_oa": true,
				"best_oa_location": {"url_for_landing_page": "https://a.example/1"},
				"oa_locations": [{"url_for_landing_page": "https://a.example/1"}, {"url_for_pdf": "https://b.example/1.pdf"}]
			}`))
		case "/v2/10.1000/closed":
			_, _ = w.Write([]byte(`{"is_oa": false}`))
		case "/v2/10.1000/broken":
			w.WriteHeader(http.StatusUnprocessableEntity)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	ctx := context.Background()

	t.Run("best pdf url", func(t *testing.T) {
		c, err := a.FindCandidate(ctx, doiID(t, "10.1038/nature12373"))
		require.NoError(t, err)
		assert.Equal(t, sources.KindURL, c.Kind)
		assert.Equal(t, "https://europepmc.org/articles/pmc4022601?pdf=render", c.URL)
	})

	t.Run("landing page when no pdf", func(t *testing.T) {
		c, err := a.FindCandidate(ctx, doiID(t, "10.1000/landing"))
		require.NoError(t, err)
		assert.Equal(t, "https://repo.example.edu/item/1", c.URL)
	})

	t.Run("pdf from other location beats best landing page", func(t *testing.T) {
		c, err := a.FindCandidate(ctx, doiID(t, "10.1000/second"))
		require.NoError(t, err)
		assert.Equal(t, "https://b.example/1.pdf", c.URL)
	})

	t.Run("closed access", func(t *testing.T) {
		c, err := a.FindCandidate(ctx, doiID(t, "10.1000/closed"))
		require.NoError(t, err)
		assert.Equal(t, sources.KindNotFound, c.Kind)
	})

	t.Run("unknown doi", func(t *testing.T) {
		c, err := a.FindCandidate(ctx, doiID(t, "10.1000/unknown"))
		require.NoError(t, err)
		assert.Equal(t, sources.KindNotFound, c.Kind)
	})

	t.Run("api error", func(t *testing.T) {
		_, err := a.FindCandidate(ctx, doiID(t, "10.1000/broken"))
		assert.Error(t, err)
	})

	t.Run("no doi", func(t *testing.T) {
		id, err := domain.NewPublicationIdentifier(domain.IdentifierFields{PMID: "1"}, "")
		require.NoError(t, err)
		c, err := a.FindCandidate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, sources.KindNotFound, c.Kind)
		assert.Equal(t, domain.SourceUnpaywall, a.Name())
	})
}
