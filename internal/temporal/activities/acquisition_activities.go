// Package activities holds the Temporal activities of the acquisition worker.
//
// Inputs and outputs cross the Temporal serialization boundary as JSON. Acquired
// bytes never do: the activity stores them through the acquisition service and
// returns only their location and digest.
package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/helixir/fulltext-acquisition-service/internal/acquisition"
	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	litemporal "github.com/helixir/fulltext-acquisition-service/internal/temporal"
)

// Application error types set on non-retryable failures.
const (
	ErrTypeInvalidRequest = "invalid_request"
	ErrTypeNoIdentifier   = "no_identifier"
)

const defaultHeartbeatInterval = 15 * time.Second

// Acquirer runs one acquisition end to end.
type Acquirer interface {
	Acquire(ctx context.Context, req domain.AcquisitionRequest) (*acquisition.Outcome, error)
}

// AcquisitionActivities runs acquisitions for workflows.
// Methods on this struct are registered as Temporal activities via the worker.
type AcquisitionActivities struct {
	acquirer          Acquirer
	validate          *validator.Validate
	heartbeatInterval time.Duration
}

// NewAcquisitionActivities creates the activities around acquirer.
func NewAcquisitionActivities(acquirer Acquirer) *AcquisitionActivities {
	return &AcquisitionActivities{
		acquirer:          acquirer,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		heartbeatInterval: defaultHeartbeatInterval,
	}
}

// AcquireFullTextInput is the input of AcquireFullText.
type AcquireFullTextInput struct {
	Request domain.AcquisitionRequest `json:"request"`
	// Resume is zero for the first run and counts resumptions after a deadline.
	Resume int `json:"resume,omitempty"`
}

// AcquireFullText runs the waterfall for one request.
//
// Exhaustion and deadline interruption are results, not errors: the summary's State
// and Interrupted fields tell them apart, and Skip lets the workflow resume. Requests
// that can never succeed fail with a non-retryable application error.
func (a *AcquisitionActivities) AcquireFullText(ctx context.Context, input AcquireFullTextInput) (*litemporal.AcquisitionSummary, error) {
	logger := activity.GetLogger(ctx)
	req := input.Request

	if err := a.validate.Struct(req); err != nil {
		logger.Warn("rejecting invalid acquisition request", "requestID", req.RequestID, "error", err)
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid acquisition request: %v", err), ErrTypeInvalidRequest, err)
	}

	logger.Info("acquiring full text", "requestID", req.RequestID, "resume", input.Resume, "skip", len(req.Skip))

	stop := a.heartbeat(ctx)
	out, err := a.acquirer.Acquire(ctx, req)
	stop()

	if err != nil && !errors.Is(err, domain.ErrSessionDeadline) {
		logger.Error("acquisition failed", "requestID", req.RequestID, "error", err)
		return nil, classify(err)
	}

	summary := Summarize(req.RequestID, out)
	logger.Info("acquisition finished",
		"requestID", req.RequestID,
		"state", summary.State,
		"source", summary.SourceUsed,
		"attempts", summary.Attempts,
		"interrupted", summary.Interrupted,
	)
	return summary, nil
}

// heartbeat records a heartbeat every interval until the returned func is called.
func (a *AcquisitionActivities) heartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(a.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, "acquiring")
			}
		}
	}()
	return func() { close(done) }
}

func classify(err error) error {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrNoIdentifier):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoIdentifier, err)
	case errors.Is(err, domain.ErrInvalidInput), errors.As(err, &verrs):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidRequest, err)
	default:
		return fmt.Errorf("acquire full text: %w", err)
	}
}

// Summarize converts an outcome to its workflow-history form.
func Summarize(requestID string, out *acquisition.Outcome) *litemporal.AcquisitionSummary {
	r := out.Result
	s := &litemporal.AcquisitionSummary{
		RequestID:   requestID,
		SessionID:   r.SessionID.String(),
		Identifier:  r.Identifier.Key(),
		State:       r.State,
		Success:     r.Success,
		Interrupted: r.Interrupted,
		SourceUsed:  r.SourceUsed,
		StorageURI:  out.StorageURI,
		Skip:        out.Skip.Strings(),
		Attempts:    len(r.Attempts),
		Duration:    r.FinishedAt.Sub(r.StartedAt),
	}
	if r.Content != nil {
		s.Kind = r.Content.Kind
		s.SHA256 = r.Content.SHA256
		s.SizeBytes = r.Content.SizeBytes
	}
	return s
}
