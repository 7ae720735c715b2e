package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogStageStart logs the beginning of a pipeline stage
func LogStageStart(log Logger, stage string, fields map[string]interface{}) {
	log.WithField("stage", stage).InfoWithFields("Stage started", fields)
}

// LogStageDone logs a finished pipeline stage along with its counters
func LogStageDone(log Logger, stage string, elapsed time.Duration, fields map[string]interface{}) {
	merged := map[string]interface{}{"duration": elapsed}
	for k, v := range fields {
		merged[k] = v
	}
	log.WithField("stage", stage).InfoWithFields("Stage finished", merged)
}

// LogFetch logs the outcome of a single asset fetch
func LogFetch(log Logger, day, filename, status string, err error) {
	l := log.WithFields(map[string]interface{}{
		"day":      day,
		"filename": filename,
		"status":   status,
	})
	if err != nil {
		l.WithError(err).Warn("Asset fetch failed")
		return
	}
	l.Debug("Asset fetch finished")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
