// Package testutil provides helpers shared by handler and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// JSONRequest builds a request whose body is v encoded as JSON. A nil v
// sends no body.
func JSONRequest(t testing.TB, method, path string, v any) *http.Request {
	t.Helper()

	var body io.Reader
	if v != nil {
		raw, err := json.Marshal(v)
		require.NoError(t, err, "failed to marshal request body")
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Serve runs req through h and returns the recorder.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// DecodeJSON decodes the response body into a T, failing the test on error.
func DecodeJSON[T any](t testing.TB, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "failed to unmarshal response: %s", rr.Body.String())
	return out
}

// AssertError checks the status and the error code of a JSON error envelope.
func AssertError(t testing.TB, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "unexpected status code: %s", rr.Body.String())
	body := DecodeJSON[map[string]string](t, rr)
	assert.Equal(t, code, body["error"], "unexpected error code")
}
