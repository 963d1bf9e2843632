package handler

import (
	"strings"
	"time"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/service"
	dErrors "matchcore/pkg/domain-errors"
)

// MaxRunTimeout caps the timeout a caller may request for one run.
const MaxRunTimeout = 10 * time.Minute

// maxMembers bounds member lists accepted on the wire.
const maxMembers = models.MaxGroupSize

// FilterRequest scopes a run's cohort.
type FilterRequest struct {
	OnlyActive            *bool   `json:"only_active"`
	ExcludeAlreadyMatched *bool   `json:"exclude_already_matched"`
	UniversityID          *string `json:"university_id"`
	MinSize               *int    `json:"min_size"`
}

// RunRequest is the HTTP request body for POST /admin/matching/runs.
type RunRequest struct {
	RunID          string        `json:"run_id"`
	Mode           string        `json:"mode"`
	GroupSize      int           `json:"group_size"`
	SuggestionMode bool          `json:"suggestion_mode"`
	Filter         FilterRequest `json:"filter"`
	TimeoutSeconds int           `json:"timeout_seconds"`

	parsedMode models.RunMode
}

// Validate normalizes the request. Mode and group size consistency is checked
// by the service.
func (r *RunRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.RunID = strings.TrimSpace(r.RunID)
	mode, err := models.ParseRunMode(strings.TrimSpace(r.Mode))
	if err != nil {
		return err
	}
	r.parsedMode = mode
	if r.TimeoutSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "timeout_seconds must not be negative")
	}
	if time.Duration(r.TimeoutSeconds)*time.Second > MaxRunTimeout {
		return dErrors.Newf(dErrors.CodeValidation, "timeout_seconds must be at most %d", int(MaxRunTimeout.Seconds()))
	}
	if r.Filter.MinSize != nil && *r.Filter.MinSize < 0 {
		return dErrors.New(dErrors.CodeValidation, "filter.min_size must not be negative")
	}
	return nil
}

// ToService builds the orchestrator request. Filter flags default to true.
func (r *RunRequest) ToService() service.RunRequest {
	filter := models.CohortFilter{
		OnlyActive:            boolOr(r.Filter.OnlyActive, true),
		ExcludeAlreadyMatched: boolOr(r.Filter.ExcludeAlreadyMatched, true),
		UniversityID:          r.Filter.UniversityID,
		MinSize:               r.Filter.MinSize,
	}
	return service.RunRequest{
		RunID:     r.RunID,
		Mode:      r.parsedMode,
		GroupSize: r.GroupSize,
		Filter:    filter,
		Timeout:   time.Duration(r.TimeoutSeconds) * time.Second,
	}
}

// LockRequest is the HTTP request body for POST /admin/matching/locks.
type LockRequest struct {
	MemberIDs []string `json:"member_ids"`
	RunID     string   `json:"run_id"`
}

func (r *LockRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.MemberIDs) > maxMembers {
		return dErrors.Newf(dErrors.CodeValidation, "member_ids must have at most %d entries", maxMembers)
	}
	if len(r.MemberIDs) < 2 {
		return dErrors.New(dErrors.CodeValidation, "member_ids must have at least 2 entries")
	}
	r.RunID = strings.TrimSpace(r.RunID)
	return nil
}

// RespondRequest is the HTTP request body for
// POST /matches/suggestions/{id}/respond.
type RespondRequest struct {
	UserID string `json:"user_id"`
	Accept *bool  `json:"accept"`
}

func (r *RespondRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if r.Accept == nil {
		return dErrors.New(dErrors.CodeValidation, "accept is required")
	}
	return nil
}

// ConfirmRequest is the HTTP request body for POST /matches/locks/{id}/confirm.
type ConfirmRequest struct {
	UserID string `json:"user_id"`
}

func (r *ConfirmRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	return nil
}

// BlockRequest is the HTTP request body for the block endpoints.
type BlockRequest struct {
	UserID        string `json:"user_id"`
	BlockedUserID string `json:"blocked_user_id"`
}

func (r *BlockRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.UserID = strings.TrimSpace(r.UserID)
	r.BlockedUserID = strings.TrimSpace(r.BlockedUserID)
	if r.UserID == "" || r.BlockedUserID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id and blocked_user_id are required")
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
