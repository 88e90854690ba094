package activities

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/helixir/fulltext-acquisition-service/internal/acquisition"
	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	litemporal "github.com/helixir/fulltext-acquisition-service/internal/temporal"
)

type mockAcquirer struct {
	mock.Mock
}

func (m *mockAcquirer) Acquire(ctx context.Context, req domain.AcquisitionRequest) (*acquisition.Outcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*acquisition.Outcome), args.Error(1)
}

func testRequest() domain.AcquisitionRequest {
	return domain.AcquisitionRequest{
		RequestID:  "r-1",
		Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"},
	}
}

func testOutcome(t *testing.T, success bool) *acquisition.Outcome {
	t.Helper()
	id, err := domain.NewPublicationIdentifier(domain.IdentifierFields{DOI: "10.1000/xyz"}, "")
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &domain.AcquisitionResult{
		SessionID:  uuid.New(),
		Identifier: id,
		State:      domain.SessionStateAllExhausted,
		Attempts: []domain.AcquisitionAttempt{
			{Source: domain.SourcePMC, Outcome: domain.OutcomeURLNotFound},
		},
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
	}
	skip := domain.NewSkipSet(domain.SourcePMC)
	out := &acquisition.Outcome{Result: res, Skip: skip}

	if success {
		res.State = domain.SessionStateSuccess
		res.Success = true
		res.SourceUsed = domain.SourceUnpaywall
		res.Content = &domain.AcquiredContent{
			Kind:      domain.ContentKindPDF,
			SHA256:    "abc123",
			SizeBytes: 2048,
			Source:    domain.SourceUnpaywall,
			Validated: true,
		}
		res.Attempts = append(res.Attempts, domain.AcquisitionAttempt{Source: domain.SourceUnpaywall, Outcome: domain.OutcomeSuccess})
		out.Skip = skip.With(domain.SourceUnpaywall)
		out.StorageURI = "gs://bucket/fulltext/abc123.pdf"
	}
	return out
}

func newEnv(acts *AcquisitionActivities) *testsuite.TestActivityEnvironment {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)
	return env
}

func TestAcquireFullText_Success(t *testing.T) {
	acquirer := &mockAcquirer{}
	acquirer.On("Acquire", mock.Anything, testRequest()).Return(testOutcome(t, true), nil)

	acts := NewAcquisitionActivities(acquirer)
	env := newEnv(acts)

	val, err := env.ExecuteActivity(acts.AcquireFullText, AcquireFullTextInput{Request: testRequest()})
	require.NoError(t, err)

	var summary litemporal.AcquisitionSummary
	require.NoError(t, val.Get(&summary))
	assert.True(t, summary.Success)
	assert.Equal(t, "r-1", summary.RequestID)
	assert.Equal(t, "doi:10.1000/xyz", summary.Identifier)
	assert.Equal(t, domain.SourceUnpaywall, summary.SourceUsed)
	assert.Equal(t, "abc123", summary.SHA256)
	assert.Equal(t, 2048, summary.SizeBytes)
	assert.Equal(t, "gs://bucket/fulltext/abc123.pdf", summary.StorageURI)
	assert.Equal(t, []string{"pmc", "unpaywall"}, summary.Skip)
	assert.Equal(t, 2, summary.Attempts)
	assert.Equal(t, 3*time.Second, summary.Duration)
	acquirer.AssertExpectations(t)
}

func TestAcquireFullText_DeadlineIsAResult(t *testing.T) {
	out := testOutcome(t, false)
	out.Result.Interrupted = true

	acquirer := &mockAcquirer{}
	acquirer.On("Acquire", mock.Anything, mock.Anything).
		Return(out, fmt.Errorf("%w after 5m0s", domain.ErrSessionDeadline))

	acts := NewAcquisitionActivities(acquirer)
	env := newEnv(acts)

	val, err := env.ExecuteActivity(acts.AcquireFullText, AcquireFullTextInput{Request: testRequest()})
	require.NoError(t, err)

	var summary litemporal.AcquisitionSummary
	require.NoError(t, val.Get(&summary))
	assert.True(t, summary.Interrupted)
	assert.False(t, summary.Success)
	assert.Equal(t, []string{"pmc"}, summary.Skip)
}

func TestAcquireFullText_NonRetryableFailures(t *testing.T) {
	tests := []struct {
		name     string
		req      domain.AcquisitionRequest
		err      error
		wantType string
	}{
		{
			name:     "missing request id",
			req:      domain.AcquisitionRequest{Identifier: domain.IdentifierFields{DOI: "10.1000/xyz"}},
			wantType: ErrTypeInvalidRequest,
		},
		{
			name:     "no identifier",
			req:      testRequest(),
			err:      domain.NewIdentifierError("no formal identifier and no title"),
			wantType: ErrTypeNoIdentifier,
		},
		{
			name:     "unknown skip token",
			req:      testRequest(),
			err:      fmt.Errorf("%w: unknown source %q", domain.ErrInvalidInput, "jstor"),
			wantType: ErrTypeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acquirer := &mockAcquirer{}
			acquirer.On("Acquire", mock.Anything, mock.Anything).Return(nil, tt.err)

			acts := NewAcquisitionActivities(acquirer)
			env := newEnv(acts)

			_, err := env.ExecuteActivity(acts.AcquireFullText, AcquireFullTextInput{Request: tt.req})
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.True(t, appErr.NonRetryable())
			assert.Equal(t, tt.wantType, appErr.Type())
		})
	}
}

func TestAcquireFullText_TransientFailureIsRetryable(t *testing.T) {
	acquirer := &mockAcquirer{}
	acquirer.On("Acquire", mock.Anything, mock.Anything).Return(nil, errors.New("bucket unavailable"))

	acts := NewAcquisitionActivities(acquirer)
	env := newEnv(acts)

	_, err := env.ExecuteActivity(acts.AcquireFullText, AcquireFullTextInput{Request: testRequest()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		assert.False(t, appErr.NonRetryable())
	}
}
