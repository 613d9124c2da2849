// Package logging sets up the process-wide structured logger and the
// context plumbing that lets every layer log with request-scoped fields
// attached, the way the teacher's Log(ctx) helper does.
package logging

import (
	"context"
	"log/slog"
	"os"

	charm "github.com/charmbracelet/log"
)

type ctxKey struct{}

// New builds a charmbracelet/log logger wired in as the slog default, and
// returns the charm handle so callers can adjust its level at runtime (the
// teacher's --verbose flag calls SetLevel on exactly this handle).
func New(verbose bool) *charm.Logger {
	handler := charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		Level:           charm.InfoLevel,
	})
	if verbose {
		handler.SetLevel(charm.DebugLevel)
	}
	slog.SetDefault(slog.New(handler))
	return handler
}

// WithContext attaches logger to ctx so downstream calls can retrieve a
// request-scoped logger instead of always falling back to the package
// default.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, or slog.Default() if
// none was attached. This mirrors the teacher's Log(ctx) helper, which
// every internal package calls instead of holding its own logger field.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
