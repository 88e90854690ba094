package workflows

import (
	"go.temporal.io/sdk/workflow"

	litemporal "github.com/helixir/fulltext-acquisition-service/internal/temporal"
)

// BatchAcquisitionWorkflow runs one AcquisitionWorkflow child per request, at most
// Concurrency at a time. Items keep the order of the input.
//
// The stop signal prevents further children from starting; children already running
// finish and the rest are reported as skipped. A failed child is recorded on its item
// and does not fail the batch.
func BatchAcquisitionWorkflow(ctx workflow.Context, input litemporal.BatchWorkflowInput) (*litemporal.BatchWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	concurrency := input.Concurrency
	if concurrency <= 0 {
		concurrency = litemporal.DefaultBatchConcurrency
	}

	total := len(input.Requests)
	result := &litemporal.BatchWorkflowResult{
		BatchID: input.BatchID,
		Total:   total,
		Items:   make([]litemporal.BatchItemResult, total),
	}
	progress := litemporal.BatchProgress{Total: total}

	if err := workflow.SetQueryHandler(ctx, litemporal.QueryProgress, func() (litemporal.BatchProgress, error) {
		return progress, nil
	}); err != nil {
		return nil, err
	}

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(workflow.GetSignalChannel(ctx, litemporal.SignalStop), func(c workflow.ReceiveChannel, _ bool) {
		c.Receive(ctx, nil)
		if !progress.Stopped {
			logger.Info("batch stop requested", "batchID", input.BatchID, "started", progress.Started)
		}
		progress.Stopped = true
	})

	next, inFlight := 0, 0
	for {
		for !progress.Stopped && inFlight < concurrency && next < total {
			i := next
			next++
			req := input.Requests[i]
			result.Items[i].RequestID = req.RequestID

			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
				WorkflowID: litemporal.AcquisitionWorkflowID(req.RequestID),
			})
			future := workflow.ExecuteChildWorkflow(childCtx, AcquisitionWorkflow, litemporal.AcquisitionWorkflowInput{Request: req})
			inFlight++
			progress.Started++

			selector.AddFuture(future, func(f workflow.Future) {
				inFlight--
				progress.Completed++

				var summary litemporal.AcquisitionSummary
				if err := f.Get(ctx, &summary); err != nil {
					logger.Warn("batch item failed", "batchID", input.BatchID, "requestID", req.RequestID, "error", err)
					result.Items[i].Error = err.Error()
					result.Failed++
					return
				}
				result.Items[i].Summary = &summary
				switch {
				case summary.Success:
					result.Succeeded++
					progress.Succeeded++
				case summary.Interrupted:
					result.Interrupted++
				default:
					result.Exhausted++
				}
			})
		}

		if inFlight == 0 {
			break
		}
		selector.Select(ctx)
	}

	for i := next; i < total; i++ {
		result.Items[i].RequestID = input.Requests[i].RequestID
		result.Items[i].Error = "skipped: batch stopped"
		result.Skipped++
	}

	logger.Info("batch finished",
		"batchID", input.BatchID,
		"succeeded", result.Succeeded,
		"exhausted", result.Exhausted,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}
