package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports"
	"matchcore/pkg/platform/sentinel"
)

const lockColumns = `id, run_id, member_ids, score, status, confirmed_by, suggestion_id, chat_id,
	locked_at, lock_expires_at, lock_reason, archived_at`

func scanLock(row rowScanner) (*models.MatchLock, error) {
	var (
		l            models.MatchLock
		members      pq.StringArray
		confirmed    pq.StringArray
		status       string
		suggestionID sql.NullString
		chatID       sql.NullString
		reason       sql.NullString
		expiresAt    sql.NullTime
		archivedAt   sql.NullTime
	)
	if err := row.Scan(&l.ID, &l.RunID, &members, &l.Score, &status, &confirmed, &suggestionID, &chatID,
		&l.LockedAt, &expiresAt, &reason, &archivedAt); err != nil {
		return nil, err
	}
	l.MemberIDs = []string(members)
	l.ConfirmedBy = []string(confirmed)
	if l.ConfirmedBy == nil {
		l.ConfirmedBy = []string{}
	}
	l.Status = models.LockStatus(status)
	l.SuggestionID = nullString(suggestionID)
	l.ChatID = nullString(chatID)
	l.LockReason = nullString(reason)
	l.LockExpiresAt = timePtr(expiresAt)
	l.ArchivedAt = timePtr(archivedAt)
	return &l, nil
}

func (s *Store) queryLocks(ctx context.Context, op, query string, args ...any) ([]*models.MatchLock, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.MatchLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// LockMatch claims every member through match_lock_members, whose primary
// key rejects a member held by another active lock.
func (s *Store) LockMatch(ctx context.Context, req models.LockRequest) (*models.MatchLock, bool, error) {
	lock, err := models.NewMatchLock(req)
	if err != nil {
		return nil, false, err
	}

	var (
		result  *models.MatchLock
		created bool
	)
	err = s.RunInTx(ctx, func(ctx context.Context, _ ports.Repository) error {
		existing, err := s.queryLocks(ctx, "find active lock", `
			SELECT `+lockColumns+` FROM match_locks
			WHERE group_key = $1 AND status IN ('locked', 'confirmed')
		`, lock.GroupKey())
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing[0]
			return nil
		}

		var prior string
		err = s.exec(ctx).QueryRowContext(ctx, `SELECT status FROM match_locks WHERE id = $1`, lock.ID).Scan(&prior)
		switch {
		case err == nil:
			return fmt.Errorf("lock %s is %s: %w", lock.ID, prior, sentinel.ErrConflict)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check lock: %w", err)
		}

		_, err = s.exec(ctx).ExecContext(ctx, `
			INSERT INTO match_locks (id, run_id, group_key, member_ids, score, status, confirmed_by,
			                         suggestion_id, chat_id, locked_at, lock_expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, lock.ID, lock.RunID, lock.GroupKey(), pq.Array(lock.MemberIDs), lock.Score, string(lock.Status),
			pq.Array(lock.ConfirmedBy), lock.SuggestionID, lock.ChatID, lock.LockedAt, lock.LockExpiresAt)
		if err != nil {
			return translate(fmt.Errorf("insert lock: %w", err))
		}
		_, err = s.exec(ctx).ExecContext(ctx, `
			INSERT INTO match_lock_members (user_id, lock_id)
			SELECT unnest($1::text[]), $2
		`, pq.Array(lock.MemberIDs), lock.ID)
		if err != nil {
			return translate(fmt.Errorf("claim lock members: %w", err))
		}
		result, created = lock, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *Store) GetLock(ctx context.Context, id string) (*models.MatchLock, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + lockColumns + ` FROM match_locks WHERE id = $1` + forUpdate(ctx)
	l, err := scanLock(s.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lock: %w", err)
	}
	return l, nil
}

func (s *Store) UpdateLock(ctx context.Context, lock *models.MatchLock) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE match_locks
		SET status = $2, confirmed_by = $3, lock_expires_at = $4, chat_id = $5
		WHERE id = $1 AND status IN ('locked', 'confirmed')
	`, lock.ID, string(lock.Status), pq.Array(nonNil(lock.ConfirmedBy)), lock.LockExpiresAt, lock.ChatID)
	if err != nil {
		return fmt.Errorf("update lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lock: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM match_locks WHERE id = $1)`, lock.ID).Scan(&exists); err != nil {
		return fmt.Errorf("update lock: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

// ArchiveOverdueLocks archives and releases in one transaction.
func (s *Store) ArchiveOverdueLocks(ctx context.Context, now time.Time) ([]*models.MatchLock, error) {
	var archived []*models.MatchLock
	err := s.RunInTx(ctx, func(ctx context.Context, _ ports.Repository) error {
		var err error
		archived, err = s.queryLocks(ctx, "archive overdue locks", `
			UPDATE match_locks
			SET status = 'archived', lock_reason = $2, archived_at = $1
			WHERE status = 'locked' AND lock_expires_at < $1
			RETURNING `+lockColumns, now, models.LockReasonUnlockDeadline)
		if err != nil {
			return err
		}
		for _, l := range archived {
			if _, err := s.exec(ctx).ExecContext(ctx,
				`DELETE FROM match_lock_members WHERE lock_id = $1`, l.ID); err != nil {
				return fmt.Errorf("release lock members: %w", err)
			}
			if _, err := s.exec(ctx).ExecContext(ctx,
				`DELETE FROM match_user_status WHERE user_id = ANY($1) AND matched_run_id = $2`,
				pq.Array(l.MemberIDs), l.RunID); err != nil {
				return fmt.Errorf("clear matched status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(archived, func(a, b *models.MatchLock) int { return strings.Compare(a.ID, b.ID) })
	return archived, nil
}

func (s *Store) MarkUsersMatched(ctx context.Context, memberIDs []string, runID string, now time.Time) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO match_user_status (user_id, matched_run_id, matched_at)
		SELECT unnest($1::text[]), $2, $3
		ON CONFLICT (user_id) DO UPDATE SET
			matched_run_id = EXCLUDED.matched_run_id,
			matched_at = EXCLUDED.matched_at
	`, pq.Array(memberIDs), runID, now)
	if err != nil {
		return translate(fmt.Errorf("mark users matched: %w", err))
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, query models.MatchQuery) ([]*models.MatchLock, error) {
	var (
		runID  sql.NullString
		locked sql.NullBool
	)
	if query.RunID != nil {
		runID = sql.NullString{String: *query.RunID, Valid: true}
	}
	if query.Locked != nil {
		locked = sql.NullBool{Bool: *query.Locked, Valid: true}
	}
	return s.queryLocks(ctx, "list matches", `
		SELECT `+lockColumns+` FROM match_locks
		WHERE ($1::text IS NULL OR run_id = $1)
		  AND ($2::boolean IS NULL OR (status IN ('locked', 'confirmed')) = $2)
		ORDER BY locked_at, id
	`, runID, locked)
}
