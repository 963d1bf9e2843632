package testutil

import (
	"net/http"
	"time"

	"matchcore/pkg/requestcontext"
)

// WithCaller attaches a caller identity as the auth middleware would.
func WithCaller(req *http.Request, callerID string) *http.Request {
	return req.WithContext(requestcontext.WithCallerID(req.Context(), callerID))
}

// WithClock pins the request clock so deadlines are deterministic.
func WithClock(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
