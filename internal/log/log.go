// Package log provides the logging infrastructure shared by the intelrag
// components.
//
// Components never reach for a global logger. Each receives one through its
// constructor, scoped with For so a single ingestion batch can be traced
// from the directory walker through the embedding provider down to the
// index backend:
//
//	provider := embed.NewProvider(model, cache, rate, log.For(logger, "embed"))
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. Using the standard library type
// directly keeps full compatibility with the slog ecosystem and avoids a
// custom interface that would only mirror it.
type Logger = *slog.Logger

// componentKey is the attribute For stamps on every scoped logger.
const componentKey = "component"

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. The zero value is slog.LevelInfo.
	Level slog.Level

	// JSON switches output from human-readable text to one JSON object per
	// line, for log shipping.
	JSON bool

	// AddSource annotates entries with the emitting file and line.
	AddSource bool
}

// New creates a logger writing to os.Stderr, keeping stdout clean for
// command output.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Tests use it with a buffer
// to assert on emitted entries.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop creates a logger that discards everything. Only for tests;
// production code keeps ingestion failures and backend errors visible
// through New or NewWithWriter.
func NewNop() Logger {
	return slog.New(slog.DiscardHandler)
}

// For scopes base to a named component. Every entry the returned logger
// emits carries a "component" attribute, which is how entries from the
// walker, the embedder and the index are told apart in one batch's output.
// A nil base returns a nop logger so DI call sites need no guard.
func For(base Logger, component string) Logger {
	if base == nil {
		return NewNop()
	}
	return base.With(componentKey, component)
}
