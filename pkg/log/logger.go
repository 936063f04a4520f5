package log

import (
	"log/slog"
	"os"
)

// New constructs the guardian's JSON slog.Logger at info level
func New(service, version string) *slog.Logger {
	return NewWithLevel(service, version, slog.LevelInfo)
}

// NewWithLevel constructs a JSON slog.Logger at the provided level.
// Every record carries the service identity so co-located adapter
// logs stay attributable
func NewWithLevel(service, version string, lvl slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("version", version))
}
