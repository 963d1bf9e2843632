package handler

import (
	"time"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/service"
)

// GroupErrorResponse describes a computed group that was not persisted.
type GroupErrorResponse struct {
	MemberIDs []string `json:"member_ids"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
}

// RunResponse is the HTTP response for POST /admin/matching/runs.
type RunResponse struct {
	RunID        string                `json:"run_id"`
	Kind         string                `json:"kind"`
	Mode         string                `json:"mode"`
	GroupSize    int                   `json:"group_size"`
	Status       string                `json:"status"`
	Candidates   int                   `json:"candidates"`
	Created      int                   `json:"created"`
	Suggestions  []*SuggestionResponse `json:"suggestions,omitempty"`
	Locks        []*LockResponse       `json:"locks,omitempty"`
	Errors       []GroupErrorResponse  `json:"errors"`
	NotProcessed []string              `json:"not_processed"`
	Unmatched    []string              `json:"unmatched"`
	Replayed     bool                  `json:"replayed"`
	Message      string                `json:"message,omitempty"`
}

// FromResult converts an orchestrator result to an HTTP response.
func FromResult(result *service.Result) *RunResponse {
	resp := &RunResponse{
		RunID:        result.RunID,
		Kind:         string(result.Kind),
		Mode:         string(result.Mode),
		GroupSize:    result.GroupSize,
		Status:       string(result.Status),
		Candidates:   result.Candidates,
		Created:      result.Created,
		Errors:       make([]GroupErrorResponse, 0, len(result.Errors)),
		NotProcessed: nonNil(result.NotProcessed),
		Unmatched:    nonNil(result.Unmatched),
		Replayed:     result.Replayed,
		Message:      result.Message,
	}
	for _, s := range result.Suggestions {
		resp.Suggestions = append(resp.Suggestions, FromSuggestion(s))
	}
	for _, l := range result.Locks {
		resp.Locks = append(resp.Locks, FromLock(l))
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, GroupErrorResponse{
			MemberIDs: e.MemberIDs,
			Code:      string(e.Code()),
			Message:   e.Err.Error(),
		})
	}
	return resp
}

// SuggestionResponse is a suggestion as seen by clients.
type SuggestionResponse struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	MemberIDs  []string  `json:"member_ids"`
	Score      float64   `json:"score"`
	Status     string    `json:"status"`
	AcceptedBy []string  `json:"accepted_by"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func FromSuggestion(s *models.Suggestion) *SuggestionResponse {
	return &SuggestionResponse{
		ID:         s.ID,
		RunID:      s.RunID,
		MemberIDs:  s.MemberIDs,
		Score:      s.Score,
		Status:     string(s.Status),
		AcceptedBy: nonNil(s.AcceptedBy),
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
	}
}

// LockResponse is a confirmed match as seen by clients.
type LockResponse struct {
	ID            string     `json:"id"`
	RunID         string     `json:"run_id"`
	MemberIDs     []string   `json:"member_ids"`
	Score         float64    `json:"score"`
	Status        string     `json:"status"`
	ConfirmedBy   []string   `json:"confirmed_by"`
	SuggestionID  *string    `json:"suggestion_id,omitempty"`
	LockedAt      time.Time  `json:"locked_at"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`
	LockReason    *string    `json:"lock_reason,omitempty"`
}

func FromLock(l *models.MatchLock) *LockResponse {
	return &LockResponse{
		ID:            l.ID,
		RunID:         l.RunID,
		MemberIDs:     l.MemberIDs,
		Score:         l.Score,
		Status:        string(l.Status),
		ConfirmedBy:   nonNil(l.ConfirmedBy),
		SuggestionID:  l.SuggestionID,
		LockedAt:      l.LockedAt,
		LockExpiresAt: l.LockExpiresAt,
		LockReason:    l.LockReason,
	}
}

// RespondResponse is the HTTP response for a member's response.
type RespondResponse struct {
	Suggestion *SuggestionResponse `json:"suggestion"`
	Lock       *LockResponse       `json:"lock,omitempty"`
}

func FromRespond(r *service.RespondResult) *RespondResponse {
	resp := &RespondResponse{Suggestion: FromSuggestion(r.Suggestion)}
	if r.Lock != nil {
		resp.Lock = FromLock(r.Lock)
	}
	return resp
}

// ListLocksResponse wraps a list of locks.
type ListLocksResponse struct {
	Matches []*LockResponse `json:"matches"`
}

// ListSuggestionsResponse wraps a list of suggestions.
type ListSuggestionsResponse struct {
	Suggestions []*SuggestionResponse `json:"suggestions"`
}

// ExpireSuggestionsResponse reports a suggestion sweep.
type ExpireSuggestionsResponse struct {
	Changed int `json:"changed"`
}

// ExpireLocksResponse reports a lock sweep.
type ExpireLocksResponse struct {
	Archived int `json:"archived"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
