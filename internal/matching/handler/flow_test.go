package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/matching/expiry"
	"matchcore/internal/matching/models"
	"matchcore/internal/matching/service"
	"matchcore/internal/matching/store/memory"
	"matchcore/pkg/testutil"
)

func newFlowRouter(t *testing.T) (http.Handler, *memory.InMemory) {
	t.Helper()
	store := memory.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store,
		service.WithLogger(logger),
		service.WithConfig(service.Config{VectorDim: 2}),
	)
	worker := expiry.New(store, expiry.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, worker, logger).Register(r)
	return r, store
}

func send(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(router, testutil.WithCaller(testutil.JSONRequest(t, method, path, body), "admin-1"))
}

func TestSuggestionFlow(t *testing.T) {
	router, store := newFlowRouter(t)
	for id, vec := range map[string][]float64{"a": {1, 0}, "b": {1, 0.1}} {
		store.UpsertCandidate(&models.Candidate{ID: id, CohortKey: "u1", Eligible: true, Vector: vec})
	}

	rec := send(t, router, http.MethodPost, "/admin/matching/runs", map[string]any{
		"run_id": "flow-1", "mode": "pairs", "suggestion_mode": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := testutil.DecodeJSON[RunResponse](t, rec)
	require.Len(t, run.Suggestions, 1)
	suggestionID := run.Suggestions[0].ID

	rec = send(t, router, http.MethodPost, "/admin/matching/runs", map[string]any{
		"run_id": "flow-1", "mode": "pairs", "suggestion_mode": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, testutil.DecodeJSON[RunResponse](t, rec).Replayed)

	rec = send(t, router, http.MethodPost, "/matches/suggestions/"+suggestionID+"/respond", map[string]any{"user_id": "a", "accept": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, testutil.DecodeJSON[RespondResponse](t, rec).Lock)

	rec = send(t, router, http.MethodPost, "/matches/suggestions/"+suggestionID+"/respond", map[string]any{"user_id": "zed", "accept": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, router, http.MethodPost, "/matches/suggestions/"+suggestionID+"/respond", map[string]any{"user_id": "b", "accept": true})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := testutil.DecodeJSON[RespondResponse](t, rec)
	require.NotNil(t, resp.Lock)
	assert.Equal(t, []string{"a", "b"}, resp.Lock.MemberIDs)

	rec = send(t, router, http.MethodGet, "/admin/matching/matches?run_id=flow-1&locked=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, testutil.DecodeJSON[ListLocksResponse](t, rec).Matches, 1)

	rec = send(t, router, http.MethodPost, "/admin/matching/locks", map[string]any{"member_ids": []string{"b", "c"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(t, router, http.MethodPost, "/admin/matching/suggestions/expire", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changed":0}`, rec.Body.String())
}

func TestSuggestionExpiryOverHTTP(t *testing.T) {
	router, store := newFlowRouter(t)
	for id, vec := range map[string][]float64{"a": {1, 0}, "b": {1, 0.1}} {
		store.UpsertCandidate(&models.Candidate{ID: id, CohortKey: "u1", Eligible: true, Vector: vec})
	}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	req := testutil.JSONRequest(t, http.MethodPost, "/admin/matching/runs", map[string]any{
		"run_id": "r1", "mode": "pairs", "suggestion_mode": true,
	})
	rec := testutil.Serve(router, testutil.WithClock(req, start))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := testutil.DecodeJSON[RunResponse](t, rec)
	require.Len(t, run.Suggestions, 1)
	assert.Equal(t, start.Add(72*time.Hour), run.Suggestions[0].ExpiresAt)

	req = testutil.JSONRequest(t, http.MethodPost, "/admin/matching/suggestions/expire", nil)
	rec = testutil.Serve(router, testutil.WithClock(req, start.Add(71*time.Hour)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changed":0}`, rec.Body.String())

	req = testutil.JSONRequest(t, http.MethodPost, "/admin/matching/suggestions/expire", nil)
	rec = testutil.Serve(router, testutil.WithClock(req, start.Add(73*time.Hour)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changed":1}`, rec.Body.String())

	req = testutil.JSONRequest(t, http.MethodPost, "/matches/suggestions/"+run.Suggestions[0].ID+"/respond", map[string]any{"user_id": "a", "accept": true})
	rec = testutil.Serve(router, testutil.WithClock(req, start.Add(74*time.Hour)))
	testutil.AssertError(t, rec, http.StatusGone, "expired")
}
