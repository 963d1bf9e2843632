package ports

import (
	"context"
	"time"

	"matchcore/internal/matching/models"
)

// CandidateReader exposes the profile store's eligible users.
type CandidateReader interface {
	// ListEligibleCandidates returns users matching filter, sorted by id.
	// Users without a vector are never returned. With ExcludeAlreadyMatched,
	// users holding an active suggestion, an active lock, or a matched
	// marker are dropped.
	ListEligibleCandidates(ctx context.Context, filter models.CohortFilter) ([]*models.Candidate, error)
}

// BlockStore persists directed block entries.
type BlockStore interface {
	// ListActiveBlocks returns entries whose EndedAt is nil.
	ListActiveBlocks(ctx context.Context) ([]*models.BlockEntry, error)
	// CreateBlock inserts an active entry. An existing active entry for the
	// same direction is left unchanged.
	CreateBlock(ctx context.Context, entry *models.BlockEntry) error
	// EndBlock closes the active entry userID -> blockedUserID.
	// Returns sentinel.ErrNotFound when none is active.
	EndBlock(ctx context.Context, userID, blockedUserID string, now time.Time) error
}

// SuggestionStore persists suggestions. It enforces no lifecycle rules.
type SuggestionStore interface {
	// CreateSuggestions upserts by (run id, group key) so retries never
	// duplicate rows. Existing rows keep their status. It returns the
	// suggestions this call inserted; rows that already existed are omitted.
	CreateSuggestions(ctx context.Context, suggestions []*models.Suggestion) (created []*models.Suggestion, err error)
	// UpdateSuggestion writes s when the stored version equals s.Version and
	// bumps s.Version. A stale version returns sentinel.ErrConflict.
	UpdateSuggestion(ctx context.Context, s *models.Suggestion) error
	GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error)
	// ListSuggestionsForUser returns the user's active suggestions, or all of
	// them when includeAll is set, newest first.
	ListSuggestionsForUser(ctx context.Context, userID string, includeAll bool) ([]*models.Suggestion, error)
	ListSuggestionsByRun(ctx context.Context, runID string) ([]*models.Suggestion, error)
	// ExpireSuggestions moves every pending or accepted suggestion with
	// expires_at < now to expired in one conditional write per row and
	// returns the rows it changed.
	ExpireSuggestions(ctx context.Context, now time.Time) ([]*models.Suggestion, error)
}

// LockStore persists confirmed matches.
type LockStore interface {
	// LockMatch atomically locks req's member set. Locking a set that is
	// already actively locked returns that lock with created=false. Any
	// overlap with a different active lock returns sentinel.ErrConflict.
	LockMatch(ctx context.Context, req models.LockRequest) (lock *models.MatchLock, created bool, err error)
	GetLock(ctx context.Context, id string) (*models.MatchLock, error)
	// UpdateLock writes confirmation progress for an active lock.
	// Returns sentinel.ErrInvalidState when the stored lock is archived.
	UpdateLock(ctx context.Context, lock *models.MatchLock) error
	// ArchiveOverdueLocks archives locked groups whose unlock deadline is
	// before now, frees their members, and returns the rows it changed.
	ArchiveOverdueLocks(ctx context.Context, now time.Time) ([]*models.MatchLock, error)
	// MarkUsersMatched records members as matched by runID.
	MarkUsersMatched(ctx context.Context, memberIDs []string, runID string, now time.Time) error
	ListMatches(ctx context.Context, query models.MatchQuery) ([]*models.MatchLock, error)
}

// RunStore persists run records.
type RunStore interface {
	// CreateRun inserts run unless its id exists. The stored run is returned
	// either way with created reporting which happened.
	CreateRun(ctx context.Context, run *models.MatchRun) (stored *models.MatchRun, created bool, err error)
	// FinishRun sets a terminal status on a running or partial run.
	FinishRun(ctx context.Context, runID string, status models.RunStatus, now time.Time) error
}

// Repository is the matching engine's only view of persistent state.
type Repository interface {
	CandidateReader
	BlockStore
	SuggestionStore
	LockStore
	RunStore

	// RunInTx runs fn against a transactional view of the repository. Writes
	// made through repo commit together when fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
