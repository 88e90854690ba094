package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/fulltext-acquisition-service/internal/database"
)

type fakeDB struct {
	status database.HealthStatus
}

func (f fakeDB) Health(context.Context) database.HealthStatus { return f.status }

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthz(t *testing.T) {
	s := NewServer(Config{}, fakeDB{status: database.HealthStatus{Status: "unhealthy"}}, nil, zerolog.Nop())

	rr := serve(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code, "liveness does not depend on the database")
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))
}

func TestReadyz(t *testing.T) {
	healthy := fakeDB{status: database.HealthStatus{Status: "healthy", TotalConns: 2, MaxConns: 10}}

	t.Run("ready when all dependencies are healthy", func(t *testing.T) {
		checks := map[string]Checker{"temporal": func(context.Context) error { return nil }}
		s := NewServer(Config{}, healthy, checks, zerolog.Nop())

		rr := serve(t, s, "/readyz")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp readinessResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "ok", resp.Checks["temporal"])
		require.NotNil(t, resp.Database)
		assert.Equal(t, int32(2), resp.Database.TotalConns)
	})

	t.Run("not ready when database is unhealthy", func(t *testing.T) {
		s := NewServer(Config{}, fakeDB{status: database.HealthStatus{Status: "unhealthy", Error: "refused"}}, nil, zerolog.Nop())

		rr := serve(t, s, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "not_ready")
	})

	t.Run("not ready when a check fails", func(t *testing.T) {
		checks := map[string]Checker{
			"redis":    func(context.Context) error { return nil },
			"temporal": func(context.Context) error { return errors.New("connection failed") },
		}
		s := NewServer(Config{}, nil, checks, zerolog.Nop())

		rr := serve(t, s, "/readyz")
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)

		var resp readinessResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "connection failed", resp.Checks["temporal"])
		assert.Equal(t, "ok", resp.Checks["redis"])
		assert.Nil(t, resp.Database)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "ops_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := NewServer(Config{MetricsEnabled: true, MetricsPath: "/metrics", MetricsGatherer: reg}, nil, nil, zerolog.Nop())
	rr := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ops_test_total 1")

	disabled := NewServer(Config{}, nil, nil, zerolog.Nop())
	assert.Equal(t, http.StatusNotFound, serve(t, disabled, "/metrics").Code)
}

func TestCorrelationIDIsPropagated(t *testing.T) {
	s := NewServer(Config{}, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Correlation-ID"))
}
