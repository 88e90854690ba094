// Package workflows defines the acquisition workflows.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	litemporal "github.com/helixir/fulltext-acquisition-service/internal/temporal"
	"github.com/helixir/fulltext-acquisition-service/internal/temporal/activities"
)

const (
	// acquireActivityTimeout covers the session deadline plus storage and bookkeeping.
	acquireActivityTimeout  = 7 * time.Minute
	acquireHeartbeatTimeout = time.Minute
)

func acquireActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: acquireActivityTimeout,
		HeartbeatTimeout:    acquireHeartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeInvalidRequest, activities.ErrTypeNoIdentifier},
		},
	}
}

// AcquisitionWorkflow acquires full text for one request.
//
// An exhausted waterfall completes the workflow normally. A run cut short by its
// session deadline is resumed below the skip set it reached, up to MaxResumes times;
// the last interrupted summary is returned when resumes run out.
func AcquisitionWorkflow(ctx workflow.Context, input litemporal.AcquisitionWorkflowInput) (*litemporal.AcquisitionSummary, error) {
	logger := workflow.GetLogger(ctx)

	maxResumes := input.MaxResumes
	switch {
	case maxResumes == 0:
		maxResumes = litemporal.DefaultMaxResumes
	case maxResumes < 0:
		maxResumes = 0
	}

	actCtx := workflow.WithActivityOptions(ctx, acquireActivityOptions())
	var acts *activities.AcquisitionActivities

	req := input.Request
	for resume := 0; ; resume++ {
		var summary litemporal.AcquisitionSummary
		err := workflow.ExecuteActivity(actCtx, acts.AcquireFullText, activities.AcquireFullTextInput{
			Request: req,
			Resume:  resume,
		}).Get(ctx, &summary)
		if err != nil {
			logger.Error("acquisition activity failed", "requestID", req.RequestID, "error", err)
			return nil, err
		}
		summary.Resumes = resume

		if !summary.Interrupted || resume >= maxResumes {
			logger.Info("acquisition workflow finished",
				"requestID", req.RequestID,
				"state", summary.State,
				"success", summary.Success,
				"resumes", resume,
			)
			return &summary, nil
		}

		logger.Info("resuming interrupted acquisition", "requestID", req.RequestID, "skip", summary.Skip)
		req.Skip = summary.Skip
		req.Fresh = false
	}
}
