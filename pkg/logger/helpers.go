package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed HTTP request against a museum API
func LogRequest(log Logger, source, method, url string, statusCode int, durationMs int64) {
	fields := map[string]interface{}{
		"source":      source,
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 500:
		log.WarnWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("HTTP request client error", fields)
	default:
		log.DebugWithFields("HTTP request completed", fields)
	}
}

// LogClassification logs the ledger outcome recorded for one candidate
func LogClassification(log Logger, source, id, outcome, reason string) {
	log.InfoWithFields("Candidate classified", map[string]interface{}{
		"source":  source,
		"item_id": id,
		"outcome": outcome,
		"reason":  reason,
	})
}

// LogSessionEnd logs the final state and counters of one adapter session
func LogSessionEnd(log Logger, source, state string, counters map[string]interface{}) {
	fields := map[string]interface{}{
		"source": source,
		"state":  state,
	}
	for k, v := range counters {
		fields[k] = v
	}
	log.InfoWithFields("Session finished", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
