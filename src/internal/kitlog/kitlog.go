// Package kitlog threads a single zerolog.Logger through context.Context,
// grounded on ManuGH-xg2g's internal/jobs package, which reads its logger
// back out of the request context (xglog.FromContext(ctx)) at every
// pipeline stage instead of passing a logger parameter explicitly.
package kitlog

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds the default msvc-kit logger: timestamped JSON lines written
// to w (os.Stderr when w is nil), at the given level.
func New(level zerolog.Level, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// With returns a child context carrying logger.
func With(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From extracts the logger stashed in ctx, falling back to a logger that
// writes to io.Discard so call sites never need a nil check.
func From(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.New(io.Discard)
}
