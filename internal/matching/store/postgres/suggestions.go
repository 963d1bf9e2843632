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
	"matchcore/pkg/platform/sentinel"
)

const suggestionColumns = `id, run_id, member_ids, score, status, accepted_by, expires_at, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuggestion(row rowScanner) (*models.Suggestion, error) {
	var (
		sg       models.Suggestion
		members  pq.StringArray
		accepted pq.StringArray
		status   string
	)
	if err := row.Scan(&sg.ID, &sg.RunID, &members, &sg.Score, &status, &accepted,
		&sg.ExpiresAt, &sg.CreatedAt, &sg.UpdatedAt, &sg.Version); err != nil {
		return nil, err
	}
	sg.MemberIDs = []string(members)
	sg.AcceptedBy = []string(accepted)
	if sg.AcceptedBy == nil {
		sg.AcceptedBy = []string{}
	}
	sg.Status = models.SuggestionStatus(status)
	return &sg, nil
}

func (s *Store) querySuggestions(ctx context.Context, op, query string, args ...any) ([]*models.Suggestion, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// CreateSuggestions inserts each suggestion unless its (run, group) key
// already exists. RETURNING yields no row for a skipped insert.
func (s *Store) CreateSuggestions(ctx context.Context, suggestions []*models.Suggestion) ([]*models.Suggestion, error) {
	query := `
		INSERT INTO match_suggestions (id, run_id, group_key, member_ids, score, status, accepted_by,
		                               expires_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		ON CONFLICT (run_id, group_key) DO NOTHING
		RETURNING id
	`
	var created []*models.Suggestion
	for _, sg := range suggestions {
		var inserted string
		err := s.exec(ctx).QueryRowContext(ctx, query,
			sg.ID, sg.RunID, sg.GroupKey(), pq.Array(sg.MemberIDs), sg.Score, string(sg.Status),
			pq.Array(nonNil(sg.AcceptedBy)), sg.ExpiresAt, sg.CreatedAt, sg.UpdatedAt).Scan(&inserted)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return nil, translate(fmt.Errorf("create suggestion %s: %w", sg.ID, err))
		}
		sg.Version = 1
		created = append(created, sg)
	}
	return created, nil
}

func (s *Store) UpdateSuggestion(ctx context.Context, sg *models.Suggestion) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE match_suggestions
		SET status = $2, accepted_by = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $5
	`, sg.ID, string(sg.Status), pq.Array(nonNil(sg.AcceptedBy)), sg.UpdatedAt, sg.Version)
	if err != nil {
		return translate(fmt.Errorf("update suggestion: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update suggestion: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.exec(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM match_suggestions WHERE id = $1)`, sg.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update suggestion: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("suggestion %s version %d is stale: %w", sg.ID, sg.Version, sentinel.ErrConflict)
	}
	sg.Version++
	return nil
}

func (s *Store) GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + suggestionColumns + ` FROM match_suggestions WHERE id = $1` + forUpdate(ctx)
	sg, err := scanSuggestion(s.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return sg, nil
}

func (s *Store) ListSuggestionsForUser(ctx context.Context, userID string, includeAll bool) ([]*models.Suggestion, error) {
	return s.querySuggestions(ctx, "list suggestions for user", `
		SELECT `+suggestionColumns+`
		FROM match_suggestions
		WHERE member_ids @> ARRAY[$1]::text[]
		  AND ($2 OR status IN ('pending', 'accepted'))
		ORDER BY created_at DESC, id
	`, userID, includeAll)
}

func (s *Store) ListSuggestionsByRun(ctx context.Context, runID string) ([]*models.Suggestion, error) {
	return s.querySuggestions(ctx, "list suggestions by run", `
		SELECT `+suggestionColumns+`
		FROM match_suggestions
		WHERE run_id = $1
		ORDER BY score DESC, group_key
	`, runID)
}

// ExpireSuggestions is a single conditional UPDATE, so concurrent sweeps
// each change a row at most once between them.
func (s *Store) ExpireSuggestions(ctx context.Context, now time.Time) ([]*models.Suggestion, error) {
	out, err := s.querySuggestions(ctx, "expire suggestions", `
		UPDATE match_suggestions
		SET status = 'expired', updated_at = $1, version = version + 1
		WHERE status IN ('pending', 'accepted') AND expires_at < $1
		RETURNING `+suggestionColumns, now)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *models.Suggestion) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
