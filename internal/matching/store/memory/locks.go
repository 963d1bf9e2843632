package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"matchcore/internal/matching/models"
	"matchcore/pkg/platform/sentinel"
)

func (v *view) LockMatch(_ context.Context, req models.LockRequest) (*models.MatchLock, bool, error) {
	lock, err := models.NewMatchLock(req)
	if err != nil {
		return nil, false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key := lock.GroupKey()
	for _, existing := range v.st.locks {
		if existing.IsActive() && existing.GroupKey() == key {
			return existing.Clone(), false, nil
		}
	}
	if existing, ok := v.st.locks[lock.ID]; ok && !existing.IsActive() {
		return nil, false, fmt.Errorf("lock %s is archived: %w", lock.ID, sentinel.ErrConflict)
	}
	for _, m := range lock.MemberIDs {
		if holder, ok := v.st.activeMembers[m]; ok {
			return nil, false, fmt.Errorf("member %s held by lock %s: %w", m, holder, sentinel.ErrConflict)
		}
	}

	v.st.locks[lock.ID] = lock.Clone()
	for _, m := range lock.MemberIDs {
		v.st.activeMembers[m] = lock.ID
	}
	return lock, true, nil
}

func (v *view) GetLock(_ context.Context, id string) (*models.MatchLock, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	l, ok := v.st.locks[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return l.Clone(), nil
}

func (v *view) UpdateLock(_ context.Context, lock *models.MatchLock) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	stored, ok := v.st.locks[lock.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.IsActive() {
		return sentinel.ErrInvalidState
	}
	next := stored.Clone()
	next.Status = lock.Status
	next.ConfirmedBy = slices.Clone(lock.ConfirmedBy)
	next.LockExpiresAt = lock.LockExpiresAt
	next.ChatID = lock.ChatID
	v.st.locks[lock.ID] = next
	return nil
}

func (v *view) ArchiveOverdueLocks(_ context.Context, now time.Time) ([]*models.MatchLock, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var archived []*models.MatchLock
	for id, l := range v.st.locks {
		if !l.IsUnlockOverdue(now) {
			continue
		}
		next := l.Clone()
		if err := next.Archive(models.LockReasonUnlockDeadline, now); err != nil {
			return nil, err
		}
		v.st.locks[id] = next
		v.st.release(next)
		archived = append(archived, next.Clone())
	}
	slices.SortFunc(archived, func(a, b *models.MatchLock) int { return cmp.Compare(a.ID, b.ID) })
	return archived, nil
}

// release frees an archived lock's members for future runs.
func (st *state) release(lock *models.MatchLock) {
	for _, m := range lock.MemberIDs {
		if st.activeMembers[m] == lock.ID {
			delete(st.activeMembers, m)
		}
		if st.matched[m] == lock.RunID {
			delete(st.matched, m)
		}
	}
}

func (v *view) MarkUsersMatched(_ context.Context, memberIDs []string, runID string, _ time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, m := range memberIDs {
		v.st.matched[m] = runID
	}
	return nil
}

func (v *view) ListMatches(_ context.Context, query models.MatchQuery) ([]*models.MatchLock, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []*models.MatchLock
	for _, l := range v.st.locks {
		if query.Matches(l) {
			out = append(out, l.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.MatchLock) int {
		if c := a.LockedAt.Compare(b.LockedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
