// Package obslog carries the context-attached zerolog.Logger pattern the
// rest of this repository logs through, generalizing the teacher's
// pkg/buildsys/output.go beyond a single package so internal/engine,
// internal/script and internal/shellrun share it without importing each
// other.
package obslog

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger retrieves the logger attached to ctx. It panics if none was
// attached, since every entry point into this codebase is expected to call
// WithLogger first.
func Logger(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(loggerKey{})
	if logger == nil {
		panic("obslog: no logger attached to context")
	}
	return logger.(*zerolog.Logger)
}
