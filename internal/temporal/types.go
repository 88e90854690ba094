package temporal

import (
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// Workflow names as registered by the worker. The client starts workflows by name so
// that it does not depend on the workflows package.
const (
	AcquisitionWorkflowName      = "AcquisitionWorkflow"
	BatchAcquisitionWorkflowName = "BatchAcquisitionWorkflow"
)

// Signal and query names understood by the batch workflow.
const (
	// SignalStop asks a batch to start no further items. Running items finish.
	SignalStop = "stop"

	// QueryProgress returns a BatchProgress.
	QueryProgress = "progress"
)

// DefaultMaxResumes is how many times an acquisition interrupted by its session
// deadline is resumed below the skip set it had reached.
const DefaultMaxResumes = 1

// AcquisitionWorkflowInput starts one acquisition.
type AcquisitionWorkflowInput struct {
	Request domain.AcquisitionRequest `json:"request"`

	// MaxResumes bounds resumption after a session deadline. Negative disables it;
	// zero means DefaultMaxResumes.
	MaxResumes int `json:"max_resumes,omitempty"`
}

// AcquisitionSummary is the workflow-history form of an acquisition outcome. Content
// bytes never enter workflow history; StorageURI locates them.
type AcquisitionSummary struct {
	RequestID   string              `json:"request_id"`
	SessionID   string              `json:"session_id"`
	Identifier  string              `json:"identifier"`
	State       domain.SessionState `json:"state"`
	Success     bool                `json:"success"`
	Interrupted bool                `json:"interrupted,omitempty"`
	SourceUsed  domain.SourceName   `json:"source_used,omitempty"`
	Kind        domain.ContentKind  `json:"kind,omitempty"`
	SHA256      string              `json:"sha256,omitempty"`
	SizeBytes   int                 `json:"size_bytes,omitempty"`
	StorageURI  string              `json:"storage_uri,omitempty"`
	Skip        []string            `json:"skip"`
	Attempts    int                 `json:"attempts"`
	// Resumes counts the runs that continued an interrupted session.
	Resumes  int           `json:"resumes,omitempty"`
	Duration time.Duration `json:"duration"`
}

// BatchWorkflowInput starts a batch of acquisitions.
type BatchWorkflowInput struct {
	BatchID  string                      `json:"batch_id"`
	Requests []domain.AcquisitionRequest `json:"requests"`

	// Concurrency bounds the acquisitions in flight. Zero means DefaultBatchConcurrency.
	Concurrency int `json:"concurrency,omitempty"`
}

// DefaultBatchConcurrency is the batch concurrency when none is given.
const DefaultBatchConcurrency = 4

// BatchItemResult is the outcome of one request in a batch.
type BatchItemResult struct {
	RequestID string              `json:"request_id"`
	Summary   *AcquisitionSummary `json:"summary,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// BatchWorkflowResult is the result of a batch.
type BatchWorkflowResult struct {
	BatchID     string            `json:"batch_id"`
	Total       int               `json:"total"`
	Succeeded   int               `json:"succeeded"`
	Exhausted   int               `json:"exhausted"`
	Interrupted int               `json:"interrupted"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Items       []BatchItemResult `json:"items"`
}

// BatchProgress is returned by the progress query.
type BatchProgress struct {
	Total     int  `json:"total"`
	Started   int  `json:"started"`
	Completed int  `json:"completed"`
	Succeeded int  `json:"succeeded"`
	Stopped   bool `json:"stopped"`
}
