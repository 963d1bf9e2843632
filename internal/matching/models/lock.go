package models

import (
	"slices"
	"time"

	dErrors "matchcore/pkg/domain-errors"
)

// LockStatus is the state of a confirmed match.
type LockStatus string

const (
	LockStatusLocked    LockStatus = "locked"
	LockStatusConfirmed LockStatus = "confirmed"
	LockStatusArchived  LockStatus = "archived"
)

// LockReasonUnlockDeadline is recorded when members did not all confirm the
// group chat before the unlock deadline.
const LockReasonUnlockDeadline = "unlock_deadline_passed"

// IsActive reports whether the lock still holds its members.
func (s LockStatus) IsActive() bool {
	return s == LockStatusLocked || s == LockStatusConfirmed
}

// MatchLock is a finalized match between members.
//
// Invariants:
//   - MemberIDs are distinct and sorted
//   - a member belongs to at most one active lock
//   - an archived lock is terminal and never regains its chat unlock
type MatchLock struct {
	ID            string     `json:"id"`
	RunID         string     `json:"run_id"`
	MemberIDs     []string   `json:"member_ids"`
	Score         float64    `json:"score"`
	Status        LockStatus `json:"status"`
	ConfirmedBy   []string   `json:"confirmed_by"`
	SuggestionID  *string    `json:"suggestion_id,omitempty"`
	ChatID        *string    `json:"chat_id,omitempty"`
	LockedAt      time.Time  `json:"locked_at"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`
	LockReason    *string    `json:"lock_reason,omitempty"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
}

// LockRequest asks the repository to lock a member set.
type LockRequest struct {
	RunID         string
	MemberIDs     []string
	Score         float64
	SuggestionID  *string
	ChatID        *string
	LockExpiresAt *time.Time
	LockedAt      time.Time
}

// NewMatchLock builds the lock a request would create.
func NewMatchLock(req LockRequest) (*MatchLock, error) {
	members, err := NormalizeMembers(req.MemberIDs)
	if err != nil {
		return nil, err
	}
	if req.RunID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lock requires a run id")
	}
	return &MatchLock{
		ID:            LockID(req.RunID, GroupKey(members)),
		RunID:         req.RunID,
		MemberIDs:     members,
		Score:         req.Score,
		Status:        LockStatusLocked,
		ConfirmedBy:   []string{},
		SuggestionID:  req.SuggestionID,
		ChatID:        req.ChatID,
		LockedAt:      req.LockedAt,
		LockExpiresAt: req.LockExpiresAt,
	}, nil
}

func (l *MatchLock) GroupKey() string {
	return GroupKey(l.MemberIDs)
}

func (l *MatchLock) IsActive() bool {
	return l.Status.IsActive()
}

func (l *MatchLock) HasMember(userID string) bool {
	_, ok := slices.BinarySearch(l.MemberIDs, userID)
	return ok
}

// IsUnlockOverdue reports whether a still-locked group missed its deadline.
func (l *MatchLock) IsUnlockOverdue(now time.Time) bool {
	return l.Status == LockStatusLocked && l.LockExpiresAt != nil && l.LockExpiresAt.Before(now)
}

func (l *MatchLock) Clone() *MatchLock {
	c := *l
	c.MemberIDs = slices.Clone(l.MemberIDs)
	c.ConfirmedBy = slices.Clone(l.ConfirmedBy)
	if c.ConfirmedBy == nil {
		c.ConfirmedBy = []string{}
	}
	return &c
}

// Confirm records a member's chat confirmation. When every member has
// confirmed the lock becomes confirmed and its deadline is cleared.
// Confirming an already confirmed lock is a no-op.
func (l *MatchLock) Confirm(userID string, now time.Time) error {
	if !l.HasMember(userID) {
		return dErrors.New(dErrors.CodeForbidden, "user is not a member of this match")
	}
	switch l.Status {
	case LockStatusConfirmed:
		return nil
	case LockStatusArchived:
		return dErrors.New(dErrors.CodeInvalidState, "match is archived")
	}
	if l.LockExpiresAt != nil && l.LockExpiresAt.Before(now) {
		return dErrors.New(dErrors.CodeExpired, "chat unlock deadline has passed")
	}
	if idx, found := slices.BinarySearch(l.ConfirmedBy, userID); !found {
		l.ConfirmedBy = slices.Insert(l.ConfirmedBy, idx, userID)
	}
	if len(l.ConfirmedBy) == len(l.MemberIDs) {
		l.Status = LockStatusConfirmed
		l.LockExpiresAt = nil
	}
	return nil
}

// Archive retires the lock and frees its members.
func (l *MatchLock) Archive(reason string, now time.Time) error {
	if !l.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "match is already archived")
	}
	l.Status = LockStatusArchived
	l.LockReason = &reason
	l.ArchivedAt = &now
	return nil
}

// MatchQuery filters ListMatches. Locked=true selects active locks,
// Locked=false archived ones.
type MatchQuery struct {
	RunID  *string
	Locked *bool
}

// Matches reports whether lock satisfies the query.
func (q MatchQuery) Matches(lock *MatchLock) bool {
	if q.RunID != nil && lock.RunID != *q.RunID {
		return false
	}
	if q.Locked != nil && lock.IsActive() != *q.Locked {
		return false
	}
	return true
}
