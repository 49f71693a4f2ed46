package engine

import "context"

// ContextKey is the type for context keys
type ContextKey string

// RequestIDKey is the context key for request tracing ID
const RequestIDKey ContextKey = "requestID"

// WithRequestID returns ctx carrying the request tracing ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID extracts request ID from context
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
