package support

import (
	"io"
	"log/slog"
)

// Logger returns l, or a logger that drops everything.
func Logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
