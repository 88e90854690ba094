// Package temporal runs acquisitions as Temporal workflows.
//
// The root package holds what both the callers and the worker need: the client used
// to start acquisitions and batches, workflow input and result types, workflow names,
// signal and query names, and worker lifecycle helpers. Workflow definitions live in
// the workflows subpackage and activities in the activities subpackage.
//
// Starting an acquisition:
//
//	c := temporal.NewAcquisitionClient(tc, temporal.ClientConfig{TaskQueue: "fulltext-acquisition"})
//	workflowID, err := c.StartAcquisition(ctx, req)
//
// The workflow ID is derived from the request ID, so starting the same request twice
// is a no-op.
package temporal
