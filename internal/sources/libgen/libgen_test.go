package libgen

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

func TestAdapter_FindCandidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/scimag/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "10.1000/direct":
			_, _ = w.Write([]byte(`<table><tr><td><a href="get.php?doi=10.1000/direct&key=k1">GET</a></td></tr></table>`))
		case "10.1000/indirect":
			_, _ = w.Write([]byte(`<table><tr><td><a href="/ads.php?doi=10.1000/indirect">Libgen</a></td></tr></table>`))
		default:
			_, _ = w.Write([]byte(`<p>No articles were found.</p>`))
		}
	})
	mux.HandleFunc("/ads.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h2><a href="/get.php?md5=abc&key=k2">GET</a></h2>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a := NewWithHTTPClient(Config{BaseURL: server.URL},
		sources.NewHTTPClient(sources.HTTPClientConfig{Timeout: 5 * time.Second, RateLimit: 100, BurstSize: 100}))

	find := func(doi string) sources.Candidate {
		id, err := domain.NewPublicationIdentifier(domain.IdentifierFields{DOI: doi}, "")
		require.NoError(t, err)
		c, err := a.FindCandidate(context.Background(), id)
		require.NoError(t, err)
		return c
	}

	assert.Equal(t, server.URL+"/scimag/get.php?doi=10.1000/direct&key=k1", find("10.1000/direct").URL)
	assert.Equal(t, server.URL+"/get.php?md5=abc&key=k2", find("10.1000/indirect").URL)
	assert.Equal(t, sources.KindNotFound, find("10.1000/none").Kind)
	assert.Equal(t, domain.SourceLibGen, a.Name())
}
