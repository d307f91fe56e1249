package core

import (
	"context"

	"github.com/covhub/covhub/schema"
)

// Context keys for request options
type contextKey string

const (
	currentUserKey contextKey = "currentUser"
	requestIDKey   contextKey = "requestID"
)

// WithCurrentUser stores the authenticated owner in the context.
func WithCurrentUser(ctx context.Context, user *schema.Owner) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the authenticated owner from context, or nil when anonymous.
func CurrentUser(ctx context.Context) *schema.Owner {
	user, _ := ctx.Value(currentUserKey).(*schema.Owner)
	return user
}

// WithRequestID stores a request id used to correlate log entries.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id from context
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
