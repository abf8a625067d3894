// Package trace carries a request ID through context.Context and into logs.
package trace

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// HeaderRequestID is read from and echoed on HTTP requests.
const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

// NewID returns a fresh request ID.
func NewID() string {
	return uuid.NewString()
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the ID stored in ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Ensure returns ctx unchanged when it already has an ID, otherwise a child
// with a new one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := RequestID(ctx); ok {
		return ctx, id
	}
	id := NewID()
	return WithRequestID(ctx, id), id
}

// Logger returns the default logger with the request ID attached.
func Logger(ctx context.Context) *slog.Logger {
	id, ok := RequestID(ctx)
	if !ok {
		return slog.Default()
	}
	return slog.Default().With("request_id", id)
}
