package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	secret string
	body   map[string]any
}

func fakeServer(t *testing.T, status int, response string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, secret: r.Header.Get("X-Cron-Secret")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestRunCommand(t *testing.T) {
	srv, calls := fakeServer(t, http.StatusOK, `{"run_id":"r1","created":2}`)
	var out bytes.Buffer

	err := run(context.Background(), []string{
		"--server", srv.URL, "run", "--run-id", "r1", "--suggestions", "--university", "uni-1", "--min-size", "4",
	}, &out, env(map[string]string{"CRON_SECRET": "s3cret"}))
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/admin/matching/runs", call.path)
	assert.Equal(t, "s3cret", call.secret)
	assert.Equal(t, "r1", call.body["run_id"])
	assert.Equal(t, true, call.body["suggestion_mode"])
	filter := call.body["filter"].(map[string]any)
	assert.Equal(t, "uni-1", filter["university_id"])
	assert.Equal(t, float64(4), filter["min_size"])
	assert.Equal(t, true, filter["exclude_already_matched"])
	assert.JSONEq(t, `{"run_id":"r1","created":2}`, out.String())
}

func TestExpireCommands(t *testing.T) {
	srv, calls := fakeServer(t, http.StatusOK, `{"changed":1}`)
	getenv := env(map[string]string{"CRON_SECRET": "s", "MATCHCORE_URL": srv.URL})

	require.NoError(t, run(context.Background(), []string{"expire-suggestions"}, &bytes.Buffer{}, getenv))
	require.NoError(t, run(context.Background(), []string{"expire-locks"}, &bytes.Buffer{}, getenv))
	require.Len(t, *calls, 2)
	assert.Equal(t, "/admin/matching/suggestions/expire", (*calls)[0].path)
	assert.Equal(t, "/admin/matching/locks/expire", (*calls)[1].path)

	assert.Error(t, run(context.Background(), []string{"expire-locks", "extra"}, &bytes.Buffer{}, getenv))
}

func TestUnblockCommand(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv, calls := fakeServer(t, http.StatusNoContent, "")
		var out bytes.Buffer
		err := run(context.Background(), []string{"--server", srv.URL, "--cron-secret", "s", "unblock", "--user", "a", "--blocked", "b"}, &out, env(nil))
		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, (*calls)[0].method)
		assert.Equal(t, "b", (*calls)[0].body["blocked_user_id"])
		assert.Equal(t, "unblocked a -> b\n", out.String())
	})

	t.Run("server rejection carries the error code", func(t *testing.T) {
		srv, _ := fakeServer(t, http.StatusNotFound, `{"error":"not_found","error_description":"no active block between these users"}`)
		err := run(context.Background(), []string{"--server", srv.URL, "--cron-secret", "s", "unblock", "--user", "a", "--blocked", "b"}, &bytes.Buffer{}, env(nil))
		var apiErr *apiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "not_found", apiErr.Code)
		assert.Equal(t, 3, apiErr.ExitCode())
	})

	t.Run("missing flags", func(t *testing.T) {
		err := run(context.Background(), []string{"--cron-secret", "s", "unblock", "--user", "a"}, &bytes.Buffer{}, env(nil))
		assert.Error(t, err)
	})
}

func TestUsageErrors(t *testing.T) {
	var exit *exitError

	err := run(context.Background(), []string{"--cron-secret", "s"}, &bytes.Buffer{}, env(nil))
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.ExitCode())

	err = run(context.Background(), []string{"run"}, &bytes.Buffer{}, env(nil))
	require.ErrorAs(t, err, &exit)

	err = run(context.Background(), []string{"--cron-secret", "s", "bogus"}, &bytes.Buffer{}, env(nil))
	require.ErrorAs(t, err, &exit)
}
