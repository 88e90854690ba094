// Package observability provides logging and metrics for the full-text acquisition
// service.
//
// # Logging
//
//	logger := observability.NewLogger(observability.LoggingConfig{Level: "info", Format: "json"})
//	logger = observability.WithSession(logger, sessionID, id.Key())
//	logger.Info().Str("source", "pmc").Msg("full text acquired")
//
// Correlation IDs travel in the context and are attached with LoggerFromContext.
//
// # Metrics
//
//	metrics := observability.NewMetrics("fulltext")
//	metrics.RecordAttempt(domain.SourcePMC, domain.OutcomeSuccess, 1.2)
//
// The Metrics methods are safe for concurrent use.
package observability
