package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes JSON to stdout. dev logs at debug, test only warnings
// and above so test output stays readable.
func NewLogger(env, service string) *slog.Logger {
	return newLogger(os.Stdout, env, service)
}

func newLogger(w io.Writer, env, service string) *slog.Logger {
	level := slog.LevelInfo

	switch env {
	case "dev":
		level = slog.LevelDebug
	case "test":
		level = slog.LevelWarn
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	log := slog.New(NewTraceHandler(handler))
	if service != "" {
		log = log.With("service", service)
	}

	return log
}
