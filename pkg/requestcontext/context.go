// Package requestcontext provides transport-independent accessors for
// request-scoped values.
//
// Middleware and CLI entry points set values; services read them:
//
//	callerID := requestcontext.CallerID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject a fixed clock with WithTime so expiry behavior is deterministic.
package requestcontext

import (
	"context"
	"time"
)

type (
	callerIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyCallerID    = callerIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// CallerID returns the pre-authorized caller identity (admin subject, "cron",
// or a user id). The matching core records it but never authorizes on it.
func CallerID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyCallerID).(string); ok {
		return v
	}
	return ""
}

// WithCallerID injects the caller identity.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, ContextKeyCallerID, callerID)
}

// RequestID returns the correlation id for the current request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now() for
// contexts that never set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock for a request, a batch sweep, or a test.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
