package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"matchcore/internal/matching/expiry"
	"matchcore/internal/matching/handler/mocks"
	"matchcore/internal/matching/models"
	"matchcore/internal/matching/service"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Sweeper
type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	sweeper *mocks.MockSweeper
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	s.sweeper = mocks.NewMockSweeper(ctrl)

	h := New(s.service, s.sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	return testutil.Serve(s.router, testutil.JSONRequest(s.T(), method, path, body))
}

func (s *HandlerSuite) TestHandleRun() {
	s.Run("suggestion mode with default filter flags", func() {
		s.SetupTest()
		s.service.EXPECT().RunMatchingAsSuggestions(gomock.Any(), service.RunRequest{
			RunID:  "r1",
			Mode:   models.RunModePairs,
			Filter: models.CohortFilter{OnlyActive: true, ExcludeAlreadyMatched: true},
		}).Return(&service.Result{
			RunID:     "r1",
			Kind:      models.RunKindSuggestion,
			Mode:      models.RunModePairs,
			GroupSize: 2,
			Status:    models.RunStatusCompleted,
			Created:   1,
			Suggestions: []*models.Suggestion{{
				ID: "s1", RunID: "r1", MemberIDs: []string{"a", "b"}, Score: 99, Status: models.SuggestionStatusPending,
			}},
		}, nil)

		rec := s.do(http.MethodPost, "/admin/matching/runs", map[string]any{
			"run_id": "r1", "mode": "pairs", "suggestion_mode": true,
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		resp := testutil.DecodeJSON[RunResponse](s.T(), rec)
		s.Equal("r1", resp.RunID)
		s.Equal(1, resp.Created)
		s.Require().Len(resp.Suggestions, 1)
		s.Equal([]string{}, resp.Suggestions[0].AcceptedBy)
		s.Empty(resp.Errors)
		s.NotNil(resp.NotProcessed)
	})

	s.Run("lock mode reports group conflicts", func() {
		s.SetupTest()
		s.service.EXPECT().RunMatching(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req service.RunRequest) (*service.Result, error) {
				s.False(req.Filter.ExcludeAlreadyMatched)
				s.Equal(30*time.Second, req.Timeout)
				return &service.Result{
					RunID:  "r2",
					Status: models.RunStatusPartial,
					Errors: []*service.GroupError{{
						MemberIDs: []string{"a", "b"},
						Err:       dErrors.New(dErrors.CodeConflict, "a member is already in another match"),
					}},
				}, nil
			})

		rec := s.do(http.MethodPost, "/admin/matching/runs", map[string]any{
			"mode":            "groups",
			"group_size":      3,
			"timeout_seconds": 30,
			"filter":          map[string]any{"exclude_already_matched": false},
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		resp := testutil.DecodeJSON[RunResponse](s.T(), rec)
		s.Equal("partial", resp.Status)
		s.Require().Len(resp.Errors, 1)
		s.Equal("conflict", resp.Errors[0].Code)
	})

	s.Run("rejects bad requests before calling the service", func() {
		for name, body := range map[string]any{
			"missing mode":     map[string]any{},
			"unknown mode":     map[string]any{"mode": "triads"},
			"negative timeout": map[string]any{"mode": "pairs", "timeout_seconds": -1},
			"huge timeout":     map[string]any{"mode": "pairs", "timeout_seconds": 3600},
			"unknown field":    map[string]any{"mode": "pairs", "surprise": true},
		} {
			s.SetupTest()
			rec := s.do(http.MethodPost, "/admin/matching/runs", body)
			s.Equal(http.StatusBadRequest, rec.Code, name)
		}
	})

	s.Run("service errors map to status codes", func() {
		s.SetupTest()
		s.service.EXPECT().RunMatching(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "another run holds this cohort"))

		rec := s.do(http.MethodPost, "/admin/matching/runs", map[string]any{"mode": "pairs"})
		testutil.AssertError(s.T(), rec, http.StatusConflict, "conflict")
		s.Contains(rec.Body.String(), "another run holds this cohort")
	})
}

func (s *HandlerSuite) TestHandleLock() {
	s.Run("generates a run id when none is given", func() {
		s.SetupTest()
		s.service.EXPECT().LockMatch(gomock.Any(), []string{"b", "a"}, gomock.Any()).
			DoAndReturn(func(_ context.Context, members []string, runID string) (*models.MatchLock, error) {
				s.True(strings.HasPrefix(runID, "run_"))
				return &models.MatchLock{ID: "l1", RunID: runID, MemberIDs: []string{"a", "b"}, Status: models.LockStatusLocked}, nil
			})

		rec := s.do(http.MethodPost, "/admin/matching/locks", map[string]any{"member_ids": []string{"b", "a"}})
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := testutil.DecodeJSON[LockResponse](s.T(), rec)
		s.Equal("l1", resp.ID)
		s.Equal([]string{}, resp.ConfirmedBy)
	})

	s.Run("too few members", func() {
		s.SetupTest()
		rec := s.do(http.MethodPost, "/admin/matching/locks", map[string]any{"member_ids": []string{"a"}})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("overlap conflicts", func() {
		s.SetupTest()
		s.service.EXPECT().LockMatch(gomock.Any(), gomock.Any(), "r1").
			Return(nil, dErrors.New(dErrors.CodeConflict, "a member is already in another match"))
		rec := s.do(http.MethodPost, "/admin/matching/locks", map[string]any{"member_ids": []string{"a", "b"}, "run_id": "r1"})
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestHandleListMatches() {
	s.Run("passes filters through", func() {
		s.SetupTest()
		s.service.EXPECT().ListMatches(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q models.MatchQuery) ([]*models.MatchLock, error) {
				s.Require().NotNil(q.RunID)
				s.Equal("r1", *q.RunID)
				s.Require().NotNil(q.Locked)
				s.False(*q.Locked)
				return nil, nil
			})
		rec := s.do(http.MethodGet, "/admin/matching/matches?run_id=r1&locked=false", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"matches":[]}`, rec.Body.String())
	})

	s.Run("rejects a malformed flag", func() {
		s.SetupTest()
		rec := s.do(http.MethodGet, "/admin/matching/matches?locked=maybe", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestExpiry() {
	s.sweeper.EXPECT().ExpireSuggestions(gomock.Any()).Return(&expiry.SuggestionSweep{Changed: 3}, nil)
	rec := s.do(http.MethodPost, "/admin/matching/suggestions/expire", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"changed":3}`, rec.Body.String())

	s.sweeper.EXPECT().ExpireLocks(gomock.Any()).Return(&expiry.LockSweep{Archived: 1}, nil)
	rec = s.do(http.MethodPost, "/admin/matching/locks/expire", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"archived":1}`, rec.Body.String())

	s.sweeper.EXPECT().ExpireLocks(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeRepository, "db down"))
	rec = s.do(http.MethodPost, "/admin/matching/locks/expire", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	body := testutil.DecodeJSON[map[string]string](s.T(), rec)
	s.Empty(body["error_description"])
}

func (s *HandlerSuite) TestBlocks() {
	s.service.EXPECT().BlockUser(gomock.Any(), "a", "b").Return(nil)
	rec := s.do(http.MethodPost, "/admin/matching/blocks", map[string]string{"user_id": "a", "blocked_user_id": "b"})
	s.Equal(http.StatusNoContent, rec.Code)

	s.service.EXPECT().UnblockUser(gomock.Any(), "a", "b").
		Return(dErrors.New(dErrors.CodeNotFound, "no active block between these users"))
	rec = s.do(http.MethodDelete, "/admin/matching/blocks", map[string]string{"user_id": "a", "blocked_user_id": "b"})
	testutil.AssertError(s.T(), rec, http.StatusNotFound, "not_found")

	rec = s.do(http.MethodDelete, "/admin/matching/blocks", map[string]string{"user_id": "a"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestMemberEndpoints() {
	s.Run("respond requires an explicit answer", func() {
		s.SetupTest()
		rec := s.do(http.MethodPost, "/matches/suggestions/s1/respond", map[string]string{"user_id": "a"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("respond returns the lock when promotion happened", func() {
		s.SetupTest()
		s.service.EXPECT().Respond(gomock.Any(), "s1", "b", true).Return(&service.RespondResult{
			Suggestion: &models.Suggestion{ID: "s1", MemberIDs: []string{"a", "b"}, Status: models.SuggestionStatusConfirmed, AcceptedBy: []string{"a", "b"}},
			Lock:       &models.MatchLock{ID: "l1", MemberIDs: []string{"a", "b"}, Status: models.LockStatusLocked},
		}, nil)
		rec := s.do(http.MethodPost, "/matches/suggestions/s1/respond", map[string]any{"user_id": "b", "accept": true})
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := testutil.DecodeJSON[RespondResponse](s.T(), rec)
		s.Equal("confirmed", resp.Suggestion.Status)
		s.Require().NotNil(resp.Lock)
		s.Equal("l1", resp.Lock.ID)
	})

	s.Run("late response is gone", func() {
		s.SetupTest()
		s.service.EXPECT().Respond(gomock.Any(), "s1", "a", false).
			Return(nil, dErrors.New(dErrors.CodeExpired, "suggestion has expired"))
		rec := s.do(http.MethodPost, "/matches/suggestions/s1/respond", map[string]any{"user_id": "a", "accept": false})
		testutil.AssertError(s.T(), rec, http.StatusGone, "expired")
	})

	s.Run("promote", func() {
		s.SetupTest()
		s.service.EXPECT().PromoteSuggestion(gomock.Any(), "s1").
			Return(nil, dErrors.New(dErrors.CodeInvalidState, "every member must accept first"))
		rec := s.do(http.MethodPost, "/matches/suggestions/s1/promote", nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("list suggestions", func() {
		s.SetupTest()
		s.service.EXPECT().ListSuggestionsForUser(gomock.Any(), "a", true).Return([]*models.Suggestion{{ID: "s1"}}, nil)
		rec := s.do(http.MethodGet, "/matches/suggestions?user_id=a&include_all=true", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := testutil.DecodeJSON[ListSuggestionsResponse](s.T(), rec)
		s.Len(resp.Suggestions, 1)

		rec = s.do(http.MethodGet, "/matches/suggestions", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("confirm", func() {
		s.SetupTest()
		s.service.EXPECT().ConfirmLock(gomock.Any(), "l1", "a").
			Return(&models.MatchLock{ID: "l1", Status: models.LockStatusLocked, ConfirmedBy: []string{"a"}}, nil)
		rec := s.do(http.MethodPost, "/matches/locks/l1/confirm", map[string]string{"user_id": "a"})
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := testutil.DecodeJSON[LockResponse](s.T(), rec)
		assert.Equal(s.T(), []string{"a"}, resp.ConfirmedBy)
	})
}
