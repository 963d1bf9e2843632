// Package handler exposes the matching engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"matchcore/internal/matching/expiry"
	"matchcore/internal/matching/models"
	"matchcore/internal/matching/service"
	id "matchcore/pkg/domain"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/platform/httputil"
	"matchcore/pkg/requestcontext"
)

// Service defines the orchestrator operations served over HTTP.
type Service interface {
	RunMatching(ctx context.Context, req service.RunRequest) (*service.Result, error)
	RunMatchingAsSuggestions(ctx context.Context, req service.RunRequest) (*service.Result, error)
	LockMatch(ctx context.Context, memberIDs []string, runID string) (*models.MatchLock, error)
	ListMatches(ctx context.Context, query models.MatchQuery) ([]*models.MatchLock, error)
	Respond(ctx context.Context, suggestionID, userID string, accept bool) (*service.RespondResult, error)
	PromoteSuggestion(ctx context.Context, suggestionID string) (*models.MatchLock, error)
	ListSuggestionsForUser(ctx context.Context, userID string, includeAll bool) ([]*models.Suggestion, error)
	ConfirmLock(ctx context.Context, lockID, userID string) (*models.MatchLock, error)
	BlockUser(ctx context.Context, userID, blockedUserID string) error
	UnblockUser(ctx context.Context, userID, blockedUserID string) error
}

// Sweeper defines the expiry operations triggered by the scheduler.
type Sweeper interface {
	ExpireSuggestions(ctx context.Context) (*expiry.SuggestionSweep, error)
	ExpireLocks(ctx context.Context) (*expiry.LockSweep, error)
}

// Handler wires matching endpoints to the orchestrator and expiry worker.
type Handler struct {
	service Service
	sweeper Sweeper
	logger  *slog.Logger
}

func New(service Service, sweeper Sweeper, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Register mounts admin and member endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/matching", func(r chi.Router) {
		r.Post("/runs", h.HandleRun)
		r.Get("/matches", h.HandleListMatches)
		r.Post("/locks", h.HandleLock)
		r.Post("/suggestions/expire", h.HandleExpireSuggestions)
		r.Post("/locks/expire", h.HandleExpireLocks)
		r.Post("/blocks", h.HandleBlock)
		r.Delete("/blocks", h.HandleUnblock)
	})
	r.Route("/matches", func(r chi.Router) {
		r.Get("/suggestions", h.HandleListSuggestions)
		r.Post("/suggestions/{id}/respond", h.HandleRespond)
		r.Post("/suggestions/{id}/promote", h.HandlePromote)
		r.Post("/locks/{id}/confirm", h.HandleConfirm)
	})
}

// HandleRun handles POST /admin/matching/runs.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	run := h.service.RunMatching
	if req.SuggestionMode {
		run = h.service.RunMatchingAsSuggestions
	}
	result, err := run(ctx, req.ToService())
	if err != nil {
		h.logger.ErrorContext(ctx, "matching run failed",
			"request_id", requestID,
			"run_id", req.RunID,
			"mode", req.Mode,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "matching run served",
		"request_id", requestID,
		"run_id", result.RunID,
		"status", string(result.Status),
		"created", result.Created,
		"errors", len(result.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleListMatches handles GET /admin/matching/matches?run_id=&locked=.
func (h *Handler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var query models.MatchQuery
	if runID := strings.TrimSpace(r.URL.Query().Get("run_id")); runID != "" {
		query.RunID = &runID
	}
	locked, err := optionalBool(r, "locked")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	query.Locked = locked

	locks, err := h.service.ListMatches(ctx, query)
	if err != nil {
		h.logger.ErrorContext(ctx, "list matches failed", "request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	resp := ListLocksResponse{Matches: make([]*LockResponse, 0, len(locks))}
	for _, l := range locks {
		resp.Matches = append(resp.Matches, FromLock(l))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleLock handles POST /admin/matching/locks. A missing run id is
// generated.
func (h *Handler) HandleLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	runID := req.RunID
	if runID == "" {
		runID = id.NewRunID(requestcontext.Now(ctx))
	}

	lock, err := h.service.LockMatch(ctx, req.MemberIDs, runID)
	if err != nil {
		h.logger.WarnContext(ctx, "lock match failed",
			"request_id", requestID,
			"run_id", runID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLock(lock))
}

// HandleExpireSuggestions handles POST /admin/matching/suggestions/expire.
func (h *Handler) HandleExpireSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sweep, err := h.sweeper.ExpireSuggestions(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "suggestion sweep failed", "request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExpireSuggestionsResponse{Changed: sweep.Changed})
}

// HandleExpireLocks handles POST /admin/matching/locks/expire.
func (h *Handler) HandleExpireLocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sweep, err := h.sweeper.ExpireLocks(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "lock sweep failed", "request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExpireLocksResponse{Archived: sweep.Archived})
}

// HandleBlock handles POST /admin/matching/blocks.
func (h *Handler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BlockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.BlockUser(ctx, req.UserID, req.BlockedUserID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnblock handles DELETE /admin/matching/blocks.
func (h *Handler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BlockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.UnblockUser(ctx, req.UserID, req.BlockedUserID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListSuggestions handles GET /matches/suggestions?user_id=&include_all=.
func (h *Handler) HandleListSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "user_id is required"))
		return
	}
	includeAll, err := optionalBool(r, "include_all")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	suggestions, err := h.service.ListSuggestionsForUser(ctx, userID, includeAll != nil && *includeAll)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListSuggestionsResponse{Suggestions: make([]*SuggestionResponse, 0, len(suggestions))}
	for _, s := range suggestions {
		resp.Suggestions = append(resp.Suggestions, FromSuggestion(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRespond handles POST /matches/suggestions/{id}/respond.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	suggestionID := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[RespondRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Respond(ctx, suggestionID, req.UserID, *req.Accept)
	if err != nil {
		h.logger.WarnContext(ctx, "suggestion response rejected",
			"request_id", requestID,
			"suggestion_id", suggestionID,
			"user_id", req.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRespond(result))
}

// HandlePromote handles POST /matches/suggestions/{id}/promote.
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	suggestionID := chi.URLParam(r, "id")

	lock, err := h.service.PromoteSuggestion(ctx, suggestionID)
	if err != nil {
		h.logger.WarnContext(ctx, "promotion rejected",
			"request_id", requestcontext.RequestID(ctx),
			"suggestion_id", suggestionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLock(lock))
}

// HandleConfirm handles POST /matches/locks/{id}/confirm.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	lockID := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[ConfirmRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	lock, err := h.service.ConfirmLock(ctx, lockID, req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLock(lock))
}

func optionalBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be a boolean", name)
	}
	return &v, nil
}
