package sources

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

type stubAdapter struct {
	name domain.SourceName
}

func (s stubAdapter) Name() domain.SourceName { return s.name }

func (s stubAdapter) FindCandidate(context.Context, domain.PublicationIdentifier) (Candidate, error) {
	return NotFound("stub"), nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubAdapter{domain.SourcePMC}))
	require.NoError(t, r.Register(stubAdapter{domain.SourceArXiv}))
	require.NoError(t, r.Register(stubAdapter{domain.SciHubMirror(1)}))

	t.Run("duplicate registration fails", func(t *testing.T) {
		assert.ErrorIs(t, r.Register(stubAdapter{domain.SourcePMC}), domain.ErrInvalidInput)
	})

	t.Run("invalid name fails", func(t *testing.T) {
		assert.Error(t, r.Register(stubAdapter{"bogus"}))
	})

	t.Run("get", func(t *testing.T) {
		assert.NotNil(t, r.Get(domain.SourcePMC))
		assert.Nil(t, r.Get(domain.SourceCORE))
	})

	t.Run("names sorted", func(t *testing.T) {
		assert.Equal(t, []domain.SourceName{domain.SourceArXiv, domain.SourcePMC, domain.SciHubMirror(1)}, r.Names())
	})

	t.Run("ordered follows priority", func(t *testing.T) {
		ordered, missing := r.Ordered([]domain.SourceName{
			domain.SciHubMirror(1), domain.SourceCORE, domain.SourcePMC, domain.SourceArXiv, domain.SourcePMC,
		})
		require.Len(t, ordered, 3)
		assert.Equal(t, domain.SciHubMirror(1), ordered[0].Name())
		assert.Equal(t, domain.SourcePMC, ordered[1].Name())
		assert.Equal(t, domain.SourceArXiv, ordered[2].Name())
		assert.Equal(t, []domain.SourceName{domain.SourceCORE}, missing)
	})
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() {
		r.MustRegister(stubAdapter{domain.SourcePMC}, stubAdapter{domain.SourcePMC})
	})
}

func TestCandidateConstructors(t *testing.T) {
	u := URL("https://example.org/x.pdf")
	assert.Equal(t, KindURL, u.Kind)
	assert.Equal(t, domain.ContentKindPDF, u.ExpectedKind())

	in := Inline([]byte("<?xml"), domain.ContentKindXML, "application/xml")
	assert.Equal(t, KindInline, in.Kind)
	assert.Equal(t, domain.ContentKindXML, in.ExpectedKind())

	nf := NotFound("no doi")
	assert.Equal(t, KindNotFound, nf.Kind)
	assert.Equal(t, "not-found", nf.Kind.String())
	assert.Equal(t, domain.ContentKindPDF, Candidate{}.ExpectedKind())
}

func TestCachedProbe_RunsOnce(t *testing.T) {
	var calls atomic.Int32
	p := NewCachedProbe(func(context.Context) bool {
		calls.Add(1)
		return true
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, p.Available(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedProbe_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	var calls atomic.Int32
	p := NewCachedProbe(func(ctx context.Context) bool {
		calls.Add(1)
		return ctx.Err() == nil
	})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.Available(cancelled))
	assert.Zero(t, calls.Load(), "check is not run for a context that is already done")

	assert.True(t, p.Available(context.Background()))
	assert.True(t, p.Available(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedProbe_ContextEndingDuringCheckIsNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	p := NewCachedProbe(func(context.Context) bool {
		if calls.Add(1) == 1 {
			cancel()
			return false
		}
		return true
	})

	assert.False(t, p.Available(ctx))
	assert.True(t, p.Available(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedProbe_CachesNegativeAnswer(t *testing.T) {
	var calls atomic.Int32
	p := NewCachedProbe(func(context.Context) bool {
		calls.Add(1)
		return false
	})

	assert.False(t, p.Available(context.Background()))
	assert.False(t, p.Available(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEscapeDOI(t *testing.T) {
	assert.Equal(t, "10.1038/nature12373", EscapeDOI("10.1038/nature12373"))
	assert.Equal(t, "10.1002/%28SICI%291097-4636", EscapeDOI("10.1002/(SICI)1097-4636"))
	assert.Equal(t, "10.1000/a%20b/c", EscapeDOI("10.1000/a b/c"))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://api.example.org/v2/x", JoinURL("https://api.example.org/", "/v2/x"))
	assert.Equal(t, "https://api.example.org/v2/x", JoinURL("https://api.example.org", "v2/x"))
}
