package domain

// AcquisitionRequest asks for the full text of one publication. It arrives over Kafka,
// as Temporal workflow input and from the CLI.
type AcquisitionRequest struct {
	// RequestID is the caller's correlation ID. The request listener derives the
	// workflow ID from it so redelivered messages do not start a second workflow.
	RequestID   string           `json:"request_id" validate:"required,max=128"`
	Identifier  IdentifierFields `json:"identifier"`
	ContentHash string           `json:"content_hash,omitempty" validate:"omitempty,max=128"`
	// Skip lists source tokens the caller has already tried.
	Skip []string `json:"skip,omitempty" validate:"omitempty,max=64,dive,max=64"`
	// Locate asks for candidate URLs only, without downloading.
	Locate bool `json:"locate,omitempty"`
	// Fresh ignores and clears the skip set stored for this publication, so sources
	// that failed in earlier sessions are tried again.
	Fresh bool `json:"fresh,omitempty"`
}

// SkipSet parses Skip. Unknown tokens are rejected.
func (r AcquisitionRequest) SkipSet() (SkipSet, error) {
	return ParseSkipSet(r.Skip)
}
