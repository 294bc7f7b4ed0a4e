package http

import "context"

type contextKey string

const (
	requestIDContextKey contextKey = "tinywiki/request-id"
	clientIPContextKey  contextKey = "tinywiki/client-ip"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDContextKey)
}

// ClientIPFromContext returns the client address resolved by the router.
func ClientIPFromContext(ctx context.Context) string {
	return stringFromContext(ctx, clientIPContextKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
