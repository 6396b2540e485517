package logger

import (
	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// PreviewLimit is how many characters of the response text are logged.
const PreviewLimit = 200

// Compile-time check to ensure ResultLogger implements ResultRecorder interface
var _ output.ResultRecorder = (*ResultLogger)(nil)

// ResultLogger struct - Output adapter writing every FinalResult to the log
type ResultLogger struct {
	log logrus.FieldLogger
}

// NewResultLogger creates a ResultLogger. A nil logger uses the standard logrus logger.
func NewResultLogger(log logrus.FieldLogger) *ResultLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ResultLogger{log: log}
}

// Record logs the result at a level matching its outcome.
func (l *ResultLogger) Record(result *domain.FinalResult) {
	entry := l.log.WithFields(logrus.Fields{
		"request_id":     result.RequestID,
		"status":         result.Status.String(),
		"exit_code":      result.ExitCode,
		"fragments":      result.Fragments,
		"response_chars": len([]rune(result.Text)),
		"queue_wait_ms":  result.QueueWait.Milliseconds(),
		"duration_ms":    result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	})

	switch result.Status {
	case domain.StateCompleted:
		entry.WithField("response_preview", Truncate(result.Text, PreviewLimit)).Info("Codex execution completed")
	case domain.StateCancelled:
		entry.Info("Codex execution cancelled")
	default:
		entry.WithFields(logrus.Fields{
			"error_kind":  result.ErrorKind,
			"http_status": result.HTTPStatus,
			"error":       result.Error,
		}).Warn("Codex execution failed")
	}
}

// Truncate shortens s to at most limit characters, marking the cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
