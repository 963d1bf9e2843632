package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports"
	id "matchcore/pkg/domain"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/platform/sentinel"
	"matchcore/pkg/requestcontext"
)

// RespondResult is the outcome of a member's response. Lock is set when the
// response completed acceptance and the suggestion was promoted.
type RespondResult struct {
	Suggestion *models.Suggestion
	Lock       *models.MatchLock
}

// Respond records a member's accept or decline.
//
// A decline ends the suggestion and blocks the decliner from every other
// member. The last acceptance promotes the suggestion in the same
// transaction. Responding after the deadline expires the suggestion and
// returns CodeExpired.
func (s *Service) Respond(ctx context.Context, suggestionID, userID string, accept bool) (*RespondResult, error) {
	suggestionID = strings.TrimSpace(suggestionID)
	if suggestionID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "suggestion id is required")
	}
	userID, err := id.ParseUserID(userID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		result  RespondResult
		expired bool
		locked  bool
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		sg, err := repo.GetSuggestion(ctx, suggestionID)
		if err != nil {
			return translate(err, "suggestion not found")
		}
		result.Suggestion = sg

		if sg.Status == models.SuggestionStatusExpired {
			return dErrors.New(dErrors.CodeExpired, "suggestion has expired")
		}
		if sg.Status.IsActive() && sg.IsPastDeadline(now) {
			if !sg.HasMember(userID) {
				return dErrors.New(dErrors.CodeForbidden, "user is not a member of this suggestion")
			}
			if err := sg.Expire(now); err != nil {
				return err
			}
			expired = true
			return translate(repo.UpdateSuggestion(ctx, sg), "failed to expire suggestion")
		}

		if !accept {
			if err := sg.Decline(userID, now); err != nil {
				return err
			}
			if err := repo.UpdateSuggestion(ctx, sg); err != nil {
				return translate(err, "suggestion changed concurrently")
			}
			for _, other := range sg.MemberIDs {
				if other == userID {
					continue
				}
				entry, err := models.NewBlockEntry(userID, other, now)
				if err != nil {
					return err
				}
				if err := repo.CreateBlock(ctx, entry); err != nil {
					return translate(err, "failed to record decline")
				}
			}
			return nil
		}

		if err := sg.Accept(userID, now); err != nil {
			return err
		}
		if !sg.AllAccepted() {
			return translate(repo.UpdateSuggestion(ctx, sg), "suggestion changed concurrently")
		}
		lock, created, err := s.promoteInTx(ctx, repo, sg, now)
		if err != nil {
			return err
		}
		result.Lock, locked = lock, created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.metrics.AddSuggestionsExpired(1)
		s.publish(ctx, models.SuggestionEvents(models.EventSuggestionExpired, result.Suggestion, now))
		return nil, dErrors.New(dErrors.CodeExpired, "suggestion has expired")
	}

	response := "decline"
	if accept {
		response = "accept"
	}
	s.metrics.IncrementResponse(response)
	s.logger.InfoContext(ctx, "suggestion response recorded",
		"suggestion_id", suggestionID,
		"user_id", userID,
		"response", response,
		"status", string(result.Suggestion.Status),
	)
	if locked {
		s.publish(ctx, models.LockEvents(models.EventMatchConfirmed, result.Lock, now))
	}
	return &result, nil
}

// PromoteSuggestion turns a fully accepted suggestion into a lock. Locking,
// marking members matched, confirming the suggestion and archiving the
// members' competing suggestions commit as one unit. Promoting a confirmed
// suggestion again returns its lock.
func (s *Service) PromoteSuggestion(ctx context.Context, suggestionID string) (*models.MatchLock, error) {
	suggestionID = strings.TrimSpace(suggestionID)
	if suggestionID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "suggestion id is required")
	}
	ctx, span := s.tracer.Start(ctx, "matching.promote", trace.WithAttributes(attribute.String("suggestion_id", suggestionID)))
	defer span.End()

	now := requestcontext.Now(ctx)
	var (
		lock    *models.MatchLock
		created bool
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		sg, err := repo.GetSuggestion(ctx, suggestionID)
		if err != nil {
			return translate(err, "suggestion not found")
		}
		if sg.Status == models.SuggestionStatusConfirmed {
			existing, err := repo.GetLock(ctx, models.LockID(sg.RunID, sg.GroupKey()))
			if err != nil {
				return translate(err, "suggestion is confirmed but its match was not found")
			}
			lock = existing
			return nil
		}
		lock, created, err = s.promoteInTx(ctx, repo, sg, now)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if created {
		s.logger.InfoContext(ctx, "suggestion promoted", "suggestion_id", suggestionID, "lock_id", lock.ID)
		s.publish(ctx, models.LockEvents(models.EventMatchConfirmed, lock, now))
	}
	return lock, nil
}

// promoteInTx locks sg's members under sg's run. created is false when the
// run already held that lock. A lock on the same members owned by another
// run is a conflict: the suggestion is not confirmed onto it.
func (s *Service) promoteInTx(ctx context.Context, repo ports.Repository, sg *models.Suggestion, now time.Time) (*models.MatchLock, bool, error) {
	if err := sg.CanConfirm(); err != nil {
		return nil, false, err
	}
	if sg.IsPastDeadline(now) {
		return nil, false, dErrors.New(dErrors.CodeExpired, "suggestion has expired")
	}
	suggestionID := sg.ID
	lock, created, err := repo.LockMatch(ctx, models.LockRequest{
		RunID:         sg.RunID,
		MemberIDs:     sg.MemberIDs,
		Score:         sg.Score,
		SuggestionID:  &suggestionID,
		LockExpiresAt: s.lockDeadline(now),
		LockedAt:      now,
	})
	if err != nil {
		return nil, false, translate(err, "a member is already in another match")
	}
	if !created && lock.RunID != sg.RunID {
		return nil, false, dErrors.Newf(dErrors.CodeConflict,
			"members are already locked together by run %s", lock.RunID)
	}
	if err := repo.MarkUsersMatched(ctx, lock.MemberIDs, sg.RunID, now); err != nil {
		return nil, false, translate(err, "failed to mark members matched")
	}
	sg.ApplyConfirm(now)
	if err := repo.UpdateSuggestion(ctx, sg); err != nil {
		return nil, false, translate(err, "suggestion changed concurrently")
	}
	if err := s.archiveCompeting(ctx, repo, sg, now); err != nil {
		return nil, false, err
	}
	return lock, created, nil
}

// archiveCompeting retires other active suggestions that include any member
// of the promoted group.
func (s *Service) archiveCompeting(ctx context.Context, repo ports.Repository, promoted *models.Suggestion, now time.Time) error {
	seen := map[string]bool{promoted.ID: true}
	for _, m := range promoted.MemberIDs {
		active, err := repo.ListSuggestionsForUser(ctx, m, false)
		if err != nil {
			return translate(err, "failed to load competing suggestions")
		}
		for _, other := range active {
			if seen[other.ID] {
				continue
			}
			seen[other.ID] = true
			if err := other.Archive(now); err != nil {
				return err
			}
			if err := repo.UpdateSuggestion(ctx, other); err != nil {
				return translate(err, "competing suggestion changed concurrently")
			}
		}
	}
	return nil
}

// ConfirmLock records a member's chat confirmation on a lock. Confirming
// after the unlock deadline returns CodeExpired; the expiry sweep archives
// the lock.
func (s *Service) ConfirmLock(ctx context.Context, lockID, userID string) (*models.MatchLock, error) {
	lockID = strings.TrimSpace(lockID)
	if lockID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "lock id is required")
	}
	userID, err := id.ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var lock *models.MatchLock
	err = s.repo.RunInTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		l, err := repo.GetLock(ctx, lockID)
		if err != nil {
			return translate(err, "match not found")
		}
		if err := l.Confirm(userID, now); err != nil {
			return err
		}
		if err := repo.UpdateLock(ctx, l); err != nil {
			return translate(err, "match changed concurrently")
		}
		lock = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "match confirmation recorded", "lock_id", lockID, "user_id", userID, "status", string(lock.Status))
	return lock, nil
}

// LockMatch locks a member set directly. Locking the same set twice returns
// the existing lock; overlapping an active lock returns CodeConflict.
func (s *Service) LockMatch(ctx context.Context, memberIDs []string, runID string) (*models.MatchLock, error) {
	members, err := models.NormalizeMembers(memberIDs)
	if err != nil {
		return nil, err
	}
	if runID, err = id.ParseRunID(runID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var (
		lock    *models.MatchLock
		created bool
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		l, c, err := repo.LockMatch(ctx, models.LockRequest{
			RunID:         runID,
			MemberIDs:     members,
			LockExpiresAt: s.lockDeadline(now),
			LockedAt:      now,
		})
		if err != nil {
			return translate(err, "a member is already in another match")
		}
		if err := repo.MarkUsersMatched(ctx, l.MemberIDs, l.RunID, now); err != nil {
			return translate(err, "failed to mark members matched")
		}
		lock, created = l, c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.InfoContext(ctx, "match locked",
			"run_id", runID,
			"lock_id", lock.ID,
			"caller_id", requestcontext.CallerID(ctx),
		)
		s.publish(ctx, models.LockEvents(models.EventMatchConfirmed, lock, now))
	}
	return lock, nil
}

// ListMatches returns locks filtered by run and active state.
func (s *Service) ListMatches(ctx context.Context, query models.MatchQuery) ([]*models.MatchLock, error) {
	if query.RunID != nil {
		runID, err := id.ParseRunID(*query.RunID)
		if err != nil {
			return nil, err
		}
		query.RunID = &runID
	}
	locks, err := s.repo.ListMatches(ctx, query)
	if err != nil {
		return nil, translate(err, "failed to list matches")
	}
	return locks, nil
}

// ListSuggestionsForUser returns a user's active suggestions, or all of them
// when includeAll is set.
func (s *Service) ListSuggestionsForUser(ctx context.Context, userID string, includeAll bool) ([]*models.Suggestion, error) {
	userID, err := id.ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	suggestions, err := s.repo.ListSuggestionsForUser(ctx, userID, includeAll)
	if err != nil {
		return nil, translate(err, "failed to list suggestions")
	}
	return suggestions, nil
}

// BlockUser starts a directed block. Blocking twice is a no-op.
func (s *Service) BlockUser(ctx context.Context, userID, blockedUserID string) error {
	entry, err := s.blockEntry(ctx, userID, blockedUserID)
	if err != nil {
		return err
	}
	return translate(s.repo.CreateBlock(ctx, entry), "failed to create block")
}

// UnblockUser ends the active block userID -> blockedUserID.
func (s *Service) UnblockUser(ctx context.Context, userID, blockedUserID string) error {
	entry, err := s.blockEntry(ctx, userID, blockedUserID)
	if err != nil {
		return err
	}
	err = s.repo.EndBlock(ctx, entry.UserID, entry.BlockedUserID, entry.StartedAt)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "no active block between these users")
	}
	if err != nil {
		return translate(err, "failed to end block")
	}
	s.logger.InfoContext(ctx, "block ended",
		"user_id", entry.UserID,
		"blocked_user_id", entry.BlockedUserID,
		"caller_id", requestcontext.CallerID(ctx),
	)
	return nil
}

func (s *Service) blockEntry(ctx context.Context, userID, blockedUserID string) (*models.BlockEntry, error) {
	u, err := id.ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	b, err := id.ParseUserID(blockedUserID)
	if err != nil {
		return nil, err
	}
	return models.NewBlockEntry(u, b, requestcontext.Now(ctx))
}
