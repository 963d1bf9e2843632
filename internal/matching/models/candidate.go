package models

import (
	"strings"

	dErrors "matchcore/pkg/domain-errors"
)

// Candidate is a user as supplied by the profile store. It is read-only to the
// matching engine.
type Candidate struct {
	ID        string
	CohortKey string
	Eligible  bool
	Vector    []float64
}

// HasVector reports whether the candidate carries a preference vector. A
// candidate without one is never eligible.
func (c Candidate) HasVector() bool {
	return len(c.Vector) > 0
}

// CohortFilter scopes candidate selection for one run. It is evaluated once,
// before scoring, and never re-read mid-run.
type CohortFilter struct {
	OnlyActive            bool    `json:"only_active"`
	ExcludeAlreadyMatched bool    `json:"exclude_already_matched"`
	UniversityID          *string `json:"university_id,omitempty"`
	MinSize               *int    `json:"min_size,omitempty"`
}

// Validate rejects malformed filters.
func (f CohortFilter) Validate() error {
	if f.UniversityID != nil && strings.TrimSpace(*f.UniversityID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "university id must not be blank when set")
	}
	if f.MinSize != nil && *f.MinSize < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "min size must not be negative")
	}
	return nil
}

// ScopeKey identifies the cohort a filter selects; runs over the same scope
// contend for the same run guard.
func (f CohortFilter) ScopeKey() string {
	if f.UniversityID == nil {
		return "all"
	}
	return "university:" + strings.TrimSpace(*f.UniversityID)
}

// MeetsMinSize reports whether n candidates satisfy the filter's minimum.
func (f CohortFilter) MeetsMinSize(n int) bool {
	return f.MinSize == nil || n >= *f.MinSize
}
