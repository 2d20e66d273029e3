package bmauth

import "context"

type retriedContextKey struct{}
type requestIDContextKey struct{}

// markRetried stamps a request context so the transport never retries
// the same request twice.
func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedContextKey{}, true)
}

func wasRetried(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	retried, _ := ctx.Value(retriedContextKey{}).(bool)
	return retried
}

// WithRequestID attaches a caller-chosen correlation id to ctx. The
// transport stamps it into the request-id header instead of generating
// one, so a request can be traced across the embedding application and
// the marketplace API.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDValue(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
