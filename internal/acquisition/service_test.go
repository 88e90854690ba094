package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/identifier"
	"github.com/helixir/fulltext-acquisition-service/internal/repository"
	"github.com/helixir/fulltext-acquisition-service/internal/skipstore"
	"github.com/helixir/fulltext-acquisition-service/internal/storage"
)

type fakeWaterfall struct {
	mu      sync.Mutex
	gotSkip domain.SkipSet
	gotID   domain.PublicationIdentifier
	acquire func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error)
	located bool
}

func (f *fakeWaterfall) Acquire(_ context.Context, id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
	f.mu.Lock()
	f.gotSkip, f.gotID = skip, id
	f.mu.Unlock()
	return f.acquire(id, skip)
}

func (f *fakeWaterfall) Locate(_ context.Context, id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.LocateResult, error) {
	f.mu.Lock()
	f.gotSkip, f.gotID, f.located = skip, id, true
	f.mu.Unlock()
	return &domain.LocateResult{Identifier: id}, nil
}

func successResult(id domain.PublicationIdentifier) *domain.AcquisitionResult {
	now := time.Now()
	return &domain.AcquisitionResult{
		SessionID:  uuid.New(),
		Identifier: id,
		State:      domain.SessionStateSuccess,
		Success:    true,
		SourceUsed: domain.SourceUnpaywall,
		Content: &domain.AcquiredContent{
			Data:      []byte("%PDF-1.4 body"),
			SizeBytes: 13,
			Source:    domain.SourceUnpaywall,
			Validated: true,
			Kind:      domain.ContentKindPDF,
			SHA256:    "feedface",
		},
		Attempts: []domain.AcquisitionAttempt{
			{Source: domain.SourceUnpaywall, Outcome: domain.OutcomeSuccess, At: now},
		},
		StartedAt:  now,
		FinishedAt: now,
	}
}

func exhaustedResult(id domain.PublicationIdentifier) *domain.AcquisitionResult {
	now := time.Now()
	return &domain.AcquisitionResult{
		SessionID:  uuid.New(),
		Identifier: id,
		State:      domain.SessionStateAllExhausted,
		Attempts: []domain.AcquisitionAttempt{
			{Source: domain.SourceCORE, Outcome: domain.OutcomeURLNotFound, At: now},
		},
		StartedAt:  now,
		FinishedAt: now,
	}
}

type fakeSessions struct {
	mu    sync.Mutex
	saved []*repository.SessionRecord
	err   error
}

func (f *fakeSessions) Save(_ context.Context, rec *repository.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeSessions) Get(context.Context, uuid.UUID) (*repository.SessionRecord, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeSessions) LatestByIdentifier(context.Context, string) (*repository.SessionRecord, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeSessions) OutcomeCounts(context.Context, time.Time) ([]repository.OutcomeCount, error) {
	return nil, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev *domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type failingSink struct{}

func (failingSink) Put(context.Context, *domain.AcquiredContent) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingSink) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("bucket unavailable")
}

func newService(t *testing.T, wf *fakeWaterfall, opts ...Option) (*Service, *skipstore.MemoryStore, *fakeSessions, *recordingPublisher) {
	t.Helper()
	store := skipstore.NewMemoryStore(time.Hour)
	sessions := &fakeSessions{}
	pub := &recordingPublisher{}
	sink, err := storage.NewFileSink(t.TempDir())
	require.NoError(t, err)

	base := []Option{WithSkipStore(store), WithSessionRepository(sessions), WithPublisher(pub), WithSink(sink)}
	svc := NewService(identifier.NewResolver(identifier.Config{}), wf, append(base, opts...)...)
	return svc, store, sessions, pub
}

func TestService_AcquireSuccess(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		return successResult(id), skip.With(domain.SourceUnpaywall), nil
	}}
	svc, store, sessions, pub := newService(t, wf)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "doi:10.1000/xyz", domain.NewSkipSet(domain.SourcePMC)))

	out, err := svc.Acquire(ctx, domain.AcquisitionRequest{
		RequestID:  "r-1",
		Identifier: domain.IdentifierFields{DOI: "https://doi.org/10.1000/XYZ"},
		Skip:       []string{"core"},
	})
	require.NoError(t, err)

	assert.Equal(t, "10.1000/XYZ", wf.gotID.DOI())
	assert.Equal(t, []domain.SourceName{domain.SourceCORE, domain.SourcePMC}, wf.gotSkip.Names(),
		"caller skip set is merged with the stored one")

	assert.True(t, out.Result.Success)
	assert.Contains(t, out.StorageURI, "feedface.pdf")
	assert.True(t, out.Skip.Contains(domain.SourceUnpaywall))

	stored, err := store.Load(ctx, "doi:10.1000/xyz")
	require.NoError(t, err)
	assert.Equal(t, []domain.SourceName{domain.SourceCORE, domain.SourcePMC, domain.SourceUnpaywall}, stored.Names())

	require.Len(t, sessions.saved, 1)
	assert.Equal(t, out.StorageURI, sessions.saved[0].StorageURI)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventTypeFullTextAcquired, pub.events[0].EventType)
	assert.Equal(t, "r-1", pub.events[0].RequestID)
}

func TestService_AcquireExhausted(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		return exhaustedResult(id), skip.With(domain.SourceCORE), nil
	}}
	svc, _, sessions, pub := newService(t, wf)

	out, err := svc.Acquire(context.Background(), domain.AcquisitionRequest{
		RequestID:  "r-2",
		Identifier: domain.IdentifierFields{PMID: "12345"},
	})
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Empty(t, out.StorageURI)
	require.Len(t, sessions.saved, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventTypeFullTextExhausted, pub.events[0].EventType)
}

func TestService_AcquireDeadlineRecordsPartialSession(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		res := exhaustedResult(id)
		res.Interrupted = true
		return res, skip.With(domain.SourceCORE), fmt.Errorf("%w after 5m0s", domain.ErrSessionDeadline)
	}}
	svc, store, sessions, pub := newService(t, wf)

	out, err := svc.Acquire(context.Background(), domain.AcquisitionRequest{
		RequestID:  "r-3",
		Identifier: domain.IdentifierFields{DOI: "10.1000/slow"},
	})
	assert.ErrorIs(t, err, domain.ErrSessionDeadline)
	require.NotNil(t, out)
	assert.True(t, out.Result.Interrupted)

	require.Len(t, sessions.saved, 1)
	stored, _ := store.Load(context.Background(), "doi:10.1000/slow")
	assert.True(t, stored.Contains(domain.SourceCORE))
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventTypeFullTextInterrupted, pub.events[0].EventType)
}

func TestService_AcquireCancelledRecordsNothing(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		return exhaustedResult(id), skip, context.Canceled
	}}
	svc, _, sessions, pub := newService(t, wf)

	out, err := svc.Acquire(context.Background(), domain.AcquisitionRequest{
		RequestID:  "r-4",
		Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Empty(t, sessions.saved)
	assert.Empty(t, pub.events)
}

func TestService_StorageFailurePersistsNothing(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		return successResult(id), skip.With(domain.SourceUnpaywall), nil
	}}
	svc, store, sessions, _ := newService(t, wf, WithSink(failingSink{}))

	_, err := svc.Acquire(context.Background(), domain.AcquisitionRequest{
		RequestID:  "r-5",
		Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Empty(t, sessions.saved)

	stored, _ := store.Load(context.Background(), "doi:10.1000/xyz")
	assert.Equal(t, 0, stored.Len())
}

func TestService_RecordFailuresDoNotFailAcquire(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		return exhaustedResult(id), skip, nil
	}}
	svc, _, sessions, _ := newService(t, wf)
	sessions.err = errors.New("db down")

	_, err := svc.Acquire(context.Background(), domain.AcquisitionRequest{
		RequestID:  "r-6",
		Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"},
	})
	assert.NoError(t, err)
}

func TestService_ResolveErrors(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		t.Fatal("waterfall must not run")
		return nil, skip, nil
	}}
	svc, _, _, _ := newService(t, wf)
	ctx := context.Background()

	_, err := svc.Acquire(ctx, domain.AcquisitionRequest{RequestID: "r", Identifier: domain.IdentifierFields{}})
	assert.ErrorIs(t, err, domain.ErrNoIdentifier)

	_, err = svc.Acquire(ctx, domain.AcquisitionRequest{
		RequestID:  "r",
		Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"},
		Skip:       []string{"jstor"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_ResolveFallsBackToSuppliedHash(t *testing.T) {
	svc, _, _, _ := newService(t, &fakeWaterfall{})

	id, err := svc.Resolve(domain.AcquisitionRequest{ContentHash: "0123456789abcdef"})
	require.NoError(t, err)
	assert.Equal(t, domain.IdentifierKindContentHash, id.Kind())
}

func TestService_Locate(t *testing.T) {
	wf := &fakeWaterfall{}
	svc, store, sessions, _ := newService(t, wf)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "doi:10.1000/xyz", domain.NewSkipSet(domain.SourcePMC)))

	res, err := svc.Locate(ctx, domain.AcquisitionRequest{Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"}})
	require.NoError(t, err)
	assert.Equal(t, "10.1000/xyz", res.Identifier.DOI())
	assert.True(t, wf.located)
	assert.True(t, wf.gotSkip.Contains(domain.SourcePMC))
	assert.Empty(t, sessions.saved)
}

func TestService_StoredSkipSetCoveringEverySourceStartsNewRound(t *testing.T) {
	var calls []domain.SkipSet
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		calls = append(calls, skip)
		if skip.Contains(domain.SourceUnpaywall) {
			res := exhaustedResult(id)
			res.Attempts = nil
			return res, skip, nil
		}
		return successResult(id), skip.With(domain.SourceUnpaywall), nil
	}}
	svc, store, sessions, _ := newService(t, wf)
	ctx := context.Background()
	key := "doi:10.1000/xyz"

	require.NoError(t, store.Save(ctx, key, domain.NewSkipSet(domain.SourceUnpaywall, domain.SourcePMC)))

	out, err := svc.Acquire(ctx, domain.AcquisitionRequest{
		RequestID:  "r-7",
		Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"},
		Skip:       []string{"core"},
	})
	require.NoError(t, err)
	assert.True(t, out.Result.Success)

	require.Len(t, calls, 2)
	assert.Equal(t, []domain.SourceName{domain.SourceCORE, domain.SourcePMC, domain.SourceUnpaywall}, calls[0].Names())
	assert.Equal(t, []domain.SourceName{domain.SourceCORE}, calls[1].Names(), "second round keeps only the caller's skip set")

	stored, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []domain.SourceName{domain.SourceCORE, domain.SourceUnpaywall}, stored.Names())
	require.Len(t, sessions.saved, 1)
}

func TestService_ExhaustedSessionIsRetriedLater(t *testing.T) {
	// The only source fails on the first call and succeeds on the next.
	var adapterCalls int
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		if skip.Contains(domain.SourceUnpaywall) {
			res := exhaustedResult(id)
			res.Attempts = nil
			return res, skip, nil
		}
		adapterCalls++
		if adapterCalls == 1 {
			res := exhaustedResult(id)
			res.Attempts = []domain.AcquisitionAttempt{{Source: domain.SourceUnpaywall, Outcome: domain.OutcomeDownloadFailed}}
			return res, skip.With(domain.SourceUnpaywall), nil
		}
		return successResult(id), skip.With(domain.SourceUnpaywall), nil
	}}
	svc, _, _, _ := newService(t, wf)
	req := domain.AcquisitionRequest{RequestID: "r-8", Identifier: domain.IdentifierFields{PMID: "777"}}

	first, err := svc.Acquire(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Result.Success)

	later, err := svc.Acquire(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, later.Result.Success)
	assert.Equal(t, 2, adapterCalls)
}

func TestService_FreshRequestClearsStoredSkipSet(t *testing.T) {
	wf := &fakeWaterfall{acquire: func(id domain.PublicationIdentifier, skip domain.SkipSet) (*domain.AcquisitionResult, domain.SkipSet, error) {
		return exhaustedResult(id), skip.With(domain.SourceCORE), nil
	}}
	svc, store, _, _ := newService(t, wf)
	ctx := context.Background()
	key := "doi:10.1000/xyz"
	require.NoError(t, store.Save(ctx, key, domain.NewSkipSet(domain.SourcePMC, domain.SourceUnpaywall)))

	_, err := svc.Acquire(ctx, domain.AcquisitionRequest{
		RequestID:  "r-9",
		Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"},
		Fresh:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, wf.gotSkip.Len(), "stored sources are tried again")

	stored, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []domain.SourceName{domain.SourceCORE}, stored.Names())
}

func TestService_FreshLocateLeavesStoredSkipSet(t *testing.T) {
	wf := &fakeWaterfall{}
	svc, store, _, _ := newService(t, wf)
	ctx := context.Background()
	key := "doi:10.1000/xyz"
	require.NoError(t, store.Save(ctx, key, domain.NewSkipSet(domain.SourcePMC)))

	_, err := svc.Locate(ctx, domain.AcquisitionRequest{Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"}, Fresh: true})
	require.NoError(t, err)
	assert.False(t, wf.gotSkip.Contains(domain.SourcePMC))

	stored, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, stored.Contains(domain.SourcePMC))
}
