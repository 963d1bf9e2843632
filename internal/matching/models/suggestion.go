package models

import (
	"slices"
	"time"

	dErrors "matchcore/pkg/domain-errors"
)

// SuggestionStatus is the double-consent lifecycle state of a Suggestion.
type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "pending"
	SuggestionStatusAccepted  SuggestionStatus = "accepted"
	SuggestionStatusDeclined  SuggestionStatus = "declined"
	SuggestionStatusExpired   SuggestionStatus = "expired"
	SuggestionStatusArchived  SuggestionStatus = "archived"
	SuggestionStatusConfirmed SuggestionStatus = "confirmed"
)

// DefaultSuggestionTTL is how long members have to respond.
const DefaultSuggestionTTL = 72 * time.Hour

func (s SuggestionStatus) IsValid() bool {
	switch s {
	case SuggestionStatusPending, SuggestionStatusAccepted, SuggestionStatusDeclined,
		SuggestionStatusExpired, SuggestionStatusArchived, SuggestionStatusConfirmed:
		return true
	}
	return false
}

// IsActive reports whether the suggestion still awaits responses.
func (s SuggestionStatus) IsActive() bool {
	return s == SuggestionStatusPending || s == SuggestionStatusAccepted
}

// CanTransitionTo encodes the lifecycle:
//
//	pending  -> accepted | declined | expired | archived | confirmed
//	accepted -> accepted | declined | expired | archived | confirmed
//
// Every other state is terminal.
func (s SuggestionStatus) CanTransitionTo(next SuggestionStatus) bool {
	if !s.IsActive() {
		return false
	}
	switch next {
	case SuggestionStatusAccepted, SuggestionStatusDeclined, SuggestionStatusExpired,
		SuggestionStatusArchived, SuggestionStatusConfirmed:
		return true
	}
	return false
}

// Suggestion is a proposed group awaiting every member's acceptance.
//
// Invariants:
//   - MemberIDs are distinct and sorted; GroupKey is derived from them
//   - AcceptedBy is a sorted subset of MemberIDs
//   - Version increases by one on every persisted update
type Suggestion struct {
	ID         string           `json:"id"`
	RunID      string           `json:"run_id"`
	MemberIDs  []string         `json:"member_ids"`
	Score      float64          `json:"score"`
	Status     SuggestionStatus `json:"status"`
	AcceptedBy []string         `json:"accepted_by"`
	ExpiresAt  time.Time        `json:"expires_at"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Version    int64            `json:"version"`
}

// NewSuggestion builds a pending suggestion with a deterministic id.
func NewSuggestion(runID string, memberIDs []string, score float64, now time.Time, ttl time.Duration) (*Suggestion, error) {
	members, err := NormalizeMembers(memberIDs)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "suggestion requires a run id")
	}
	if ttl <= 0 {
		ttl = DefaultSuggestionTTL
	}
	return &Suggestion{
		ID:         SuggestionID(runID, GroupKey(members)),
		RunID:      runID,
		MemberIDs:  members,
		Score:      score,
		Status:     SuggestionStatusPending,
		AcceptedBy: []string{},
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *Suggestion) GroupKey() string {
	return GroupKey(s.MemberIDs)
}

func (s *Suggestion) HasMember(userID string) bool {
	_, ok := slices.BinarySearch(s.MemberIDs, userID)
	return ok
}

// IsPastDeadline reports whether expiresAt < now.
func (s *Suggestion) IsPastDeadline(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// AllAccepted reports whether every member has accepted.
func (s *Suggestion) AllAccepted() bool {
	return len(s.AcceptedBy) == len(s.MemberIDs)
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Suggestion) Clone() *Suggestion {
	c := *s
	c.MemberIDs = slices.Clone(s.MemberIDs)
	c.AcceptedBy = slices.Clone(s.AcceptedBy)
	if c.AcceptedBy == nil {
		c.AcceptedBy = []string{}
	}
	return &c
}

func (s *Suggestion) canMove(next SuggestionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvalidState, "suggestion is %s and cannot become %s", s.Status, next)
	}
	return nil
}

func (s *Suggestion) requireMember(userID string) error {
	if !s.HasMember(userID) {
		return dErrors.New(dErrors.CodeForbidden, "user is not a member of this suggestion")
	}
	return nil
}

// Accept records userID's acceptance. Accepting twice is a no-op. The status
// becomes accepted; promotion to confirmed is a separate step.
func (s *Suggestion) Accept(userID string, now time.Time) error {
	if err := s.requireMember(userID); err != nil {
		return err
	}
	if err := s.canMove(SuggestionStatusAccepted); err != nil {
		return err
	}
	if idx, found := slices.BinarySearch(s.AcceptedBy, userID); !found {
		s.AcceptedBy = slices.Insert(s.AcceptedBy, idx, userID)
	}
	s.Status = SuggestionStatusAccepted
	s.UpdatedAt = now
	return nil
}

// Decline ends the suggestion for every member.
func (s *Suggestion) Decline(userID string, now time.Time) error {
	if err := s.requireMember(userID); err != nil {
		return err
	}
	if err := s.canMove(SuggestionStatusDeclined); err != nil {
		return err
	}
	s.Status = SuggestionStatusDeclined
	s.UpdatedAt = now
	return nil
}

// Expire moves an active suggestion past its deadline to expired.
func (s *Suggestion) Expire(now time.Time) error {
	if err := s.canMove(SuggestionStatusExpired); err != nil {
		return err
	}
	if !s.IsPastDeadline(now) {
		return dErrors.New(dErrors.CodeInvalidState, "suggestion has not reached its deadline")
	}
	s.Status = SuggestionStatusExpired
	s.UpdatedAt = now
	return nil
}

// Archive retires an active suggestion superseded by another lock.
func (s *Suggestion) Archive(now time.Time) error {
	if err := s.canMove(SuggestionStatusArchived); err != nil {
		return err
	}
	s.Status = SuggestionStatusArchived
	s.UpdatedAt = now
	return nil
}

// CanConfirm checks that the suggestion is active and fully accepted.
// Use with ApplyConfirm inside a transaction.
func (s *Suggestion) CanConfirm() error {
	if err := s.canMove(SuggestionStatusConfirmed); err != nil {
		return err
	}
	if !s.AllAccepted() {
		return dErrors.Newf(dErrors.CodeInvalidState, "suggestion has %d of %d acceptances", len(s.AcceptedBy), len(s.MemberIDs))
	}
	return nil
}

// ApplyConfirm marks the suggestion as promoted to a lock.
func (s *Suggestion) ApplyConfirm(now time.Time) {
	s.Status = SuggestionStatusConfirmed
	s.UpdatedAt = now
}
