package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published after an acquisition session.
const (
	EventTypeFullTextAcquired  = "fulltext.acquired"
	EventTypeFullTextExhausted = "fulltext.exhausted"
	// EventTypeFullTextInterrupted is published when the session deadline cut the
	// waterfall short; the skip set in the payload lets the caller resume.
	EventTypeFullTextInterrupted = "fulltext.interrupted"
)

// AggregateTypeAcquisitionSession is the aggregate of every published event.
const AggregateTypeAcquisitionSession = "acquisition_session"

// Event is the envelope written to the events topic.
type Event struct {
	EventID       string          `json:"event_id"`
	EventVersion  int             `json:"event_version"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RequestID     string          `json:"request_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEvent builds an event with a fresh ID, JSON-encoding payload.
func NewEvent(eventType, aggregateID string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		EventID:       uuid.New().String(),
		EventVersion:  1,
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: AggregateTypeAcquisitionSession,
		Payload:       payloadBytes,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// SessionEventPayload describes a finished session.
type SessionEventPayload struct {
	SessionID     uuid.UUID             `json:"session_id"`
	IdentifierKey string                `json:"identifier_key"`
	Identifier    PublicationIdentifier `json:"identifier"`
	State         SessionState          `json:"state"`
	Source        SourceName            `json:"source,omitempty"`
	Kind          ContentKind           `json:"kind,omitempty"`
	SHA256        string                `json:"sha256,omitempty"`
	SizeBytes     int                   `json:"size_bytes,omitempty"`
	StorageURI    string                `json:"storage_uri,omitempty"`
	Attempts      int                   `json:"attempts"`
	Skip          SkipSet               `json:"skip"`
}

// SessionEvent builds the event describing result. storageURI may be empty.
func SessionEvent(result *AcquisitionResult, skip SkipSet, storageURI, requestID string) (*Event, error) {
	payload := SessionEventPayload{
		SessionID:     result.SessionID,
		IdentifierKey: result.Identifier.Key(),
		Identifier:    result.Identifier,
		State:         result.State,
		Source:        result.SourceUsed,
		Attempts:      len(result.Attempts),
		Skip:          skip,
		StorageURI:    storageURI,
	}
	if c := result.Content; c != nil {
		payload.Kind = c.Kind
		payload.SHA256 = c.SHA256
		payload.SizeBytes = c.SizeBytes
	}

	eventType := EventTypeFullTextExhausted
	switch {
	case result.Success:
		eventType = EventTypeFullTextAcquired
	case result.Interrupted:
		eventType = EventTypeFullTextInterrupted
	}

	ev, err := NewEvent(eventType, result.SessionID.String(), payload)
	if err != nil {
		return nil, err
	}
	ev.RequestID = requestID
	return ev, nil
}
