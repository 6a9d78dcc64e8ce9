package context

import (
	"context"
)

// TraceContext identifies one request across logs, spans and error bodies.
type TraceContext struct {
	TraceID   string
	RequestID string
	// Route is the matched route template, e.g. "POST /api/v1/orders/:id/write-off".
	Route string
}

type traceContextKey struct{}

func WithTrace(ctx context.Context, trace TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the request's trace ids, or nil outside a request.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(TraceContext); ok {
		return &v
	}
	return nil
}

// RequestID returns the request id or "".
func RequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}
