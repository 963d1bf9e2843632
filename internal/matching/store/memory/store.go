// Package memory is an in-process Repository for tests and single-node
// development. Transactions clone the whole state and swap it in on commit.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/platform/sentinel"
)

type locker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// noLock is used inside a transaction, which already holds the store lock.
type noLock struct{}

func (noLock) Lock()    {}
func (noLock) Unlock()  {}
func (noLock) RLock()   {}
func (noLock) RUnlock() {}

type state struct {
	candidates     map[string]*models.Candidate
	blocks         []*models.BlockEntry
	suggestions    map[string]*models.Suggestion
	suggestionKeys map[string]string
	locks          map[string]*models.MatchLock
	activeMembers  map[string]string
	matched        map[string]string
	runs           map[string]*models.MatchRun
}

func newState() *state {
	return &state{
		candidates:     make(map[string]*models.Candidate),
		suggestions:    make(map[string]*models.Suggestion),
		suggestionKeys: make(map[string]string),
		locks:          make(map[string]*models.MatchLock),
		activeMembers:  make(map[string]string),
		matched:        make(map[string]string),
		runs:           make(map[string]*models.MatchRun),
	}
}

func (st *state) clone() *state {
	c := &state{
		candidates:     maps.Clone(st.candidates),
		blocks:         make([]*models.BlockEntry, len(st.blocks)),
		suggestions:    make(map[string]*models.Suggestion, len(st.suggestions)),
		suggestionKeys: maps.Clone(st.suggestionKeys),
		locks:          make(map[string]*models.MatchLock, len(st.locks)),
		activeMembers:  maps.Clone(st.activeMembers),
		matched:        maps.Clone(st.matched),
		runs:           make(map[string]*models.MatchRun, len(st.runs)),
	}
	for i, b := range st.blocks {
		cp := *b
		c.blocks[i] = &cp
	}
	for k, v := range st.suggestions {
		c.suggestions[k] = v.Clone()
	}
	for k, v := range st.locks {
		c.locks[k] = v.Clone()
	}
	for k, v := range st.runs {
		cp := *v
		c.runs[k] = &cp
	}
	return c
}

type view struct {
	mu locker
	st *state
}

// InMemory implements ports.Repository.
type InMemory struct {
	view
}

var _ ports.Repository = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{view{mu: &sync.RWMutex{}, st: newState()}}
}

// UpsertCandidate stands in for the external profile store.
func (s *InMemory) UpsertCandidate(c *models.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Vector = slices.Clone(c.Vector)
	s.st.candidates[c.ID] = &cp
}

func (v *view) RunInTx(ctx context.Context, fn func(ctx context.Context, repo ports.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, nested := v.mu.(noLock); nested {
		return fn(ctx, v)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	working := v.st.clone()
	if err := fn(ctx, &view{mu: noLock{}, st: working}); err != nil {
		return err
	}
	*v.st = *working
	return nil
}

func (v *view) ListEligibleCandidates(_ context.Context, filter models.CohortFilter) ([]*models.Candidate, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var busy map[string]bool
	if filter.ExcludeAlreadyMatched {
		busy = v.st.busyUsers()
	}
	out := make([]*models.Candidate, 0, len(v.st.candidates))
	for _, c := range v.st.candidates {
		if !c.HasVector() {
			continue
		}
		if filter.OnlyActive && !c.Eligible {
			continue
		}
		if filter.UniversityID != nil && c.CohortKey != *filter.UniversityID {
			continue
		}
		if busy[c.ID] {
			continue
		}
		cp := *c
		cp.Vector = slices.Clone(c.Vector)
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Candidate) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (st *state) busyUsers() map[string]bool {
	busy := make(map[string]bool, len(st.matched)+len(st.activeMembers))
	for id := range st.matched {
		busy[id] = true
	}
	for id := range st.activeMembers {
		busy[id] = true
	}
	for _, sg := range st.suggestions {
		if sg.Status.IsActive() {
			for _, m := range sg.MemberIDs {
				busy[m] = true
			}
		}
	}
	return busy
}

func (v *view) ListActiveBlocks(_ context.Context) ([]*models.BlockEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*models.BlockEntry, 0, len(v.st.blocks))
	for _, b := range v.st.blocks {
		if b.IsActive() {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (v *view) CreateBlock(_ context.Context, entry *models.BlockEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.st.activeBlock(entry.UserID, entry.BlockedUserID) != nil {
		return nil
	}
	cp := *entry
	v.st.blocks = append(v.st.blocks, &cp)
	return nil
}

func (v *view) EndBlock(_ context.Context, userID, blockedUserID string, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	b := v.st.activeBlock(userID, blockedUserID)
	if b == nil {
		return sentinel.ErrNotFound
	}
	return b.End(now)
}

func (st *state) activeBlock(userID, blockedUserID string) *models.BlockEntry {
	for _, b := range st.blocks {
		if b.IsActive() && b.UserID == userID && b.BlockedUserID == blockedUserID {
			return b
		}
	}
	return nil
}
