// Package xcontext carries request-scoped values between middleware and
// handlers.
package xcontext

import "context"

type (
	requestIDKey struct{}
	userIDKey    struct{}
	shutdownKey  struct{}
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// SetUserID stores the subject of the verified bearer token.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// SetShutdownInProgress flags ctx so a cancellation can be reported as a
// server shutdown rather than a client disconnect.
func SetShutdownInProgress(ctx context.Context, inProgress bool) context.Context {
	return context.WithValue(ctx, shutdownKey{}, inProgress)
}

func IsShutdownInProgress(ctx context.Context) bool {
	v, _ := ctx.Value(shutdownKey{}).(bool)
	return v
}
