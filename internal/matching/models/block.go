package models

import (
	"time"

	dErrors "matchcore/pkg/domain-errors"
)

// BlockEntry is a directed exclusion: while EndedAt is nil the two users are
// never proposed together, in either direction.
type BlockEntry struct {
	UserID        string     `json:"user_id"`
	BlockedUserID string     `json:"blocked_user_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

func NewBlockEntry(userID, blockedUserID string, now time.Time) (*BlockEntry, error) {
	if userID == blockedUserID {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a user cannot block themselves")
	}
	return &BlockEntry{UserID: userID, BlockedUserID: blockedUserID, StartedAt: now}, nil
}

func (b *BlockEntry) IsActive() bool {
	return b.EndedAt == nil
}

// End closes the entry. Ending an ended entry is rejected.
func (b *BlockEntry) End(now time.Time) error {
	if !b.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "block has already ended")
	}
	b.EndedAt = &now
	return nil
}

type blockPair struct{ lo, hi string }

func newBlockPair(a, b string) blockPair {
	if a > b {
		a, b = b, a
	}
	return blockPair{lo: a, hi: b}
}

// BlockSet is an undirected lookup over active block entries.
type BlockSet struct {
	pairs map[blockPair]struct{}
}

// NewBlockSet indexes active entries; ended ones are ignored.
func NewBlockSet(entries []*BlockEntry) *BlockSet {
	set := &BlockSet{pairs: make(map[blockPair]struct{}, len(entries))}
	for _, e := range entries {
		if e.IsActive() {
			set.pairs[newBlockPair(e.UserID, e.BlockedUserID)] = struct{}{}
		}
	}
	return set
}

// Blocked reports whether either user blocks the other.
func (s *BlockSet) Blocked(a, b string) bool {
	if s == nil {
		return false
	}
	_, ok := s.pairs[newBlockPair(a, b)]
	return ok
}

// AnyBlocked reports whether any two of memberIDs are blocked.
func (s *BlockSet) AnyBlocked(memberIDs []string) bool {
	for i := range memberIDs {
		for j := i + 1; j < len(memberIDs); j++ {
			if s.Blocked(memberIDs[i], memberIDs[j]) {
				return true
			}
		}
	}
	return false
}

func (s *BlockSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pairs)
}
