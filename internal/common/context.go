package common

import "context"

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// WithRequestID stamps the request id the HTTP layer assigned onto the
// context so request-scoped log lines can carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// RequestIDFromContext returns the stamped request id, or "" outside a
// request.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}
