package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"matchcore/internal/matching/models"
	"matchcore/pkg/platform/sentinel"
)

func (s *Store) ListEligibleCandidates(ctx context.Context, filter models.CohortFilter) ([]*models.Candidate, error) {
	query := `
		SELECT c.user_id, c.cohort_key, c.eligible, c.preference_vector
		FROM match_candidates c
		WHERE ($1 = FALSE OR c.eligible)
		  AND ($2::text IS NULL OR c.cohort_key = $2)
		  AND ($3 = FALSE OR (
		        NOT EXISTS (SELECT 1 FROM match_user_status us WHERE us.user_id = c.user_id)
		    AND NOT EXISTS (SELECT 1 FROM match_lock_members lm WHERE lm.user_id = c.user_id)
		    AND NOT EXISTS (
		        SELECT 1 FROM match_suggestions sg
		        WHERE sg.member_ids @> ARRAY[c.user_id]
		          AND sg.status IN ('pending', 'accepted'))))
		ORDER BY c.user_id
	`
	var university sql.NullString
	if filter.UniversityID != nil {
		university = sql.NullString{String: *filter.UniversityID, Valid: true}
	}
	rows, err := s.exec(ctx).QueryContext(ctx, query, filter.OnlyActive, university, filter.ExcludeAlreadyMatched)
	if err != nil {
		return nil, fmt.Errorf("list eligible candidates: %w", err)
	}
	defer rows.Close()

	var out []*models.Candidate
	for rows.Next() {
		var (
			c      models.Candidate
			vector pq.Float64Array
		)
		if err := rows.Scan(&c.ID, &c.CohortKey, &c.Eligible, &vector); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Vector = []float64(vector)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

func (s *Store) ListActiveBlocks(ctx context.Context) ([]*models.BlockEntry, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT user_id, blocked_user_id, started_at
		FROM match_blocklist
		WHERE ended_at IS NULL
		ORDER BY user_id, blocked_user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list active blocks: %w", err)
	}
	defer rows.Close()

	var out []*models.BlockEntry
	for rows.Next() {
		var b models.BlockEntry
		if err := rows.Scan(&b.UserID, &b.BlockedUserID, &b.StartedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return out, nil
}

func (s *Store) CreateBlock(ctx context.Context, entry *models.BlockEntry) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO match_blocklist (user_id, blocked_user_id, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, blocked_user_id) WHERE ended_at IS NULL DO NOTHING
	`, entry.UserID, entry.BlockedUserID, entry.StartedAt)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

func (s *Store) EndBlock(ctx context.Context, userID, blockedUserID string, now time.Time) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE match_blocklist SET ended_at = $3
		WHERE user_id = $1 AND blocked_user_id = $2 AND ended_at IS NULL
	`, userID, blockedUserID, now)
	if err != nil {
		return fmt.Errorf("end block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end block: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
