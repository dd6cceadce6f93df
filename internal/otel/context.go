package otel

import "context"

type queryIDKey struct{}

// WithQueryID returns a context carrying the query correlation ID.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, id)
}

// QueryID returns the correlation ID stored by WithQueryID, or "".
func QueryID(ctx context.Context) string {
	id, _ := ctx.Value(queryIDKey{}).(string)
	return id
}
