package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// Starter starts the acquisition for one request, typically as a Temporal workflow.
type Starter interface {
	StartAcquisition(ctx context.Context, req domain.AcquisitionRequest) (string, error)
}

// messageReader is the subset of *kafka.Reader used by RequestListener.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ListenerConfig configures NewRequestListener.
type ListenerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// RequestListener consumes acquisition requests and hands them to a Starter.
type RequestListener struct {
	reader   messageReader
	starter  Starter
	validate *validator.Validate
	logger   zerolog.Logger
	// retryDelay is the pause before re-handling a message whose start failed.
	retryDelay time.Duration
}

// NewRequestListener creates a listener with a consumer-group reader.
func NewRequestListener(cfg ListenerConfig, starter Starter, logger zerolog.Logger) *RequestListener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newRequestListener(reader, starter, logger)
}

func newRequestListener(reader messageReader, starter Starter, logger zerolog.Logger) *RequestListener {
	return &RequestListener{
		reader:     reader,
		starter:    starter,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.With().Str("component", "request_listener").Logger(),
		retryDelay: 2 * time.Second,
	}
}

// Run consumes messages until ctx is cancelled. Malformed messages are logged and
// committed; a message whose start fails is retried until it succeeds or ctx ends.
func (l *RequestListener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting request listener")

	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("request listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		if err := l.handleWithRetry(ctx, msg); err != nil {
			return err
		}

		if err := l.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

func (l *RequestListener) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	for {
		err := l.handle(ctx, msg)
		if err == nil || errors.Is(err, domain.ErrInvalidInput) {
			return nil
		}

		l.logger.Error().Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("failed to start acquisition, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

// handle returns an error matching domain.ErrInvalidInput for messages that can never
// succeed.
func (l *RequestListener) handle(ctx context.Context, msg kafka.Message) error {
	req, err := l.decode(msg.Value)
	if err != nil {
		l.logger.Warn().Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("dropping malformed acquisition request")
		return err
	}

	workflowID, err := l.starter.StartAcquisition(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNoIdentifier) {
			l.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("dropping unprocessable acquisition request")
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("start acquisition %s: %w", req.RequestID, err)
	}

	l.logger.Info().
		Str("request_id", req.RequestID).
		Str("workflow_id", workflowID).
		Msg("acquisition started")
	return nil
}

// decode parses and validates a request message.
func (l *RequestListener) decode(value []byte) (domain.AcquisitionRequest, error) {
	var req domain.AcquisitionRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return req, domain.NewValidationError("message", err.Error())
	}
	if err := l.validate.Struct(req); err != nil {
		return req, domain.NewValidationError("request", err.Error())
	}
	if _, err := req.SkipSet(); err != nil {
		return req, domain.NewValidationError("skip", err.Error())
	}
	return req, nil
}

// Close closes the Kafka reader.
func (l *RequestListener) Close() error {
	l.logger.Info().Msg("closing request listener")
	return l.reader.Close()
}
