// Package requestid threads a per-request trace identifier through context.Context.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const key contextKey = "request_id"

// New mints a fresh request identifier.
func New() string {
	return uuid.NewString()
}

// WithRequestID returns a context carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, key, requestID)
}

// FromContext returns the request ID stored in ctx, or "" if none was set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}
