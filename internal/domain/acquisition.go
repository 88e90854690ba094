package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome is the result of trying one source.
// These values must match the database enum attempt_outcome.
type AttemptOutcome string

const (
	OutcomeURLFound         AttemptOutcome = "url-found"
	OutcomeURLNotFound      AttemptOutcome = "url-not-found"
	OutcomeDownloadFailed   AttemptOutcome = "download-failed"
	OutcomeValidationFailed AttemptOutcome = "validation-failed"
	OutcomeSuccess          AttemptOutcome = "success"
)

// IsFailure returns true for outcomes that mean the source produced nothing usable.
func (o AttemptOutcome) IsFailure() bool {
	switch o {
	case OutcomeURLNotFound, OutcomeDownloadFailed, OutcomeValidationFailed:
		return true
	default:
		return false
	}
}

// SessionState is the waterfall state of one acquisition session.
type SessionState string

const (
	SessionStatePending         SessionState = "pending"
	SessionStateTrying          SessionState = "trying"
	SessionStateSourceExhausted SessionState = "source_exhausted"
	SessionStateSuccess         SessionState = "success"
	SessionStateAllExhausted    SessionState = "all_exhausted"
)

// IsTerminal returns true if the state is final.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateSuccess || s == SessionStateAllExhausted
}

// ContentKind classifies acquired or rejected payloads.
type ContentKind string

const (
	ContentKindPDF          ContentKind = "pdf"
	ContentKindXML          ContentKind = "xml"
	ContentKindHTMLRejected ContentKind = "html-rejected"
)

// AcquisitionAttempt records one source try in an acquisition session.
type AcquisitionAttempt struct {
	Source   SourceName     `json:"source"`
	Outcome  AttemptOutcome `json:"outcome"`
	Error    string         `json:"error,omitempty"`
	URL      string         `json:"url,omitempty"`
	Kind     ContentKind    `json:"kind,omitempty"`
	Duration time.Duration  `json:"duration"`
	At       time.Time      `json:"at"`
}

// AcquiredContent is a validated full-text artifact.
// It is created only after validation passes and is handed off to a storage sink.
type AcquiredContent struct {
	Data        []byte      `json:"-"`
	SizeBytes   int         `json:"size_bytes"`
	Source      SourceName  `json:"source"`
	Validated   bool        `json:"validated"`
	Kind        ContentKind `json:"kind"`
	URL         string      `json:"url,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	SHA256      string      `json:"sha256"`
	PageCount   int         `json:"page_count,omitempty"`
}

// AcquisitionResult is the outcome of one waterfall run.
type AcquisitionResult struct {
	SessionID  uuid.UUID             `json:"session_id"`
	Identifier PublicationIdentifier `json:"identifier"`
	State      SessionState          `json:"state"`
	Success    bool                  `json:"success"`
	Content    *AcquiredContent      `json:"content,omitempty"`
	SourceUsed SourceName            `json:"source_used,omitempty"`
	Attempts   []AcquisitionAttempt  `json:"attempts"`

	// Interrupted is set when the session deadline ended the run early.
	Interrupted bool      `json:"interrupted,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Outcomes returns the attempt outcomes in order.
func (r *AcquisitionResult) Outcomes() []AttemptOutcome {
	out := make([]AttemptOutcome, len(r.Attempts))
	for i, a := range r.Attempts {
		out[i] = a.Outcome
	}
	return out
}

// AttemptedSources returns the attempted sources in order.
func (r *AcquisitionResult) AttemptedSources() []SourceName {
	out := make([]SourceName, len(r.Attempts))
	for i, a := range r.Attempts {
		out[i] = a.Source
	}
	return out
}

// CandidateLocation is a download location discovered without fetching it.
type CandidateLocation struct {
	Source SourceName `json:"source"`
	URL    string     `json:"url,omitempty"`
	Inline bool       `json:"inline,omitempty"`
}

// LocateResult lists every candidate location the waterfall could find.
type LocateResult struct {
	Identifier PublicationIdentifier `json:"identifier"`
	Candidates []CandidateLocation   `json:"candidates"`
	Attempts   []AcquisitionAttempt  `json:"attempts"`
}
