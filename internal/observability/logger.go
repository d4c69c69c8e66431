// Package observability configures process-wide structured logging.
package observability

import (
	"log/slog"
	"os"
)

// SetupLogger installs the default slog handler: human-readable text in
// dev, JSON in prod.
func SetupLogger(dev bool) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if dev {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
