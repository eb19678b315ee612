package callback

import (
	"log/slog"

	"github.com/actionfleet/actionfleet/internal/engine"
)

// LogSink writes one structured log line per engine notification, in the
// same terse key=value shape the teacher's scheduler and persistence
// layers log their own lifecycle events with.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink wraps log. A nil logger falls back to slog.Default().
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Notify(kind engine.EventKind, payload any) {
	service, action, status, ok := describe(kind, payload)
	if !ok {
		s.log.Debug("engine event", "kind", kind.String())
		return
	}
	s.log.Info("engine event",
		"kind", kind.String(),
		"service", service,
		"action", action,
		"status", status,
	)
}
