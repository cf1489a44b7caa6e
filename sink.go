package tamd

import (
	"context"
	"log/slog"
)

// Sink receives diagnostic reports. Report is called outside the runtime's
// lock, from the goroutine that triggered the report: the caller of Define for
// registration problems and the host for missing modules.
type Sink interface {
	Report(r Report)
}

type SinkFunc func(r Report)

func (f SinkFunc) Report(r Report) {
	f(r)
}

type logSink struct {
	logger *slog.Logger
}

// LogSink renders reports through logger. Invalid identifiers are logged at
// error level and everything else at warn level.
func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &logSink{logger: logger}
}

func (s *logSink) Report(r Report) {
	level := slog.LevelWarn
	if r.Kind == InvalidIdentifier {
		level = slog.LevelError
	}
	s.logger.LogAttrs(
		context.Background(), level, r.Message,
		slog.String("kind", r.Kind.String()),
		slog.String("module", r.Name),
	)
}

// MultiSink fans reports out to every sink in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(r Report) {
		for _, s := range sinks {
			s.Report(r)
		}
	})
}
