package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"matchcore/internal/matching/models"
	"matchcore/pkg/platform/sentinel"
)

func (s *Store) CreateRun(ctx context.Context, run *models.MatchRun) (*models.MatchRun, bool, error) {
	filter, err := json.Marshal(run.Filter)
	if err != nil {
		return nil, false, fmt.Errorf("encode run filter: %w", err)
	}
	res, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO match_runs (run_id, mode, group_size, kind, filter, caller_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO NOTHING
	`, run.RunID, string(run.Mode), run.GroupSize, string(run.Kind), filter, run.CallerID, string(run.Status), run.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("create run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("create run: %w", err)
	}
	stored, err := s.getRun(ctx, run.RunID)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

func (s *Store) getRun(ctx context.Context, runID string) (*models.MatchRun, error) {
	var (
		run                models.MatchRun
		mode, kind, status string
		filter             []byte
		completedAt        sql.NullTime
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT run_id, mode, group_size, kind, filter, caller_id, status, created_at, completed_at
		FROM match_runs WHERE run_id = $1
	`, runID).Scan(&run.RunID, &mode, &run.GroupSize, &kind, &filter, &run.CallerID, &status, &run.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal(filter, &run.Filter); err != nil {
		return nil, fmt.Errorf("decode run filter: %w", err)
	}
	run.Mode = models.RunMode(mode)
	run.Kind = models.RunKind(kind)
	run.Status = models.RunStatus(status)
	run.CompletedAt = timePtr(completedAt)
	return &run, nil
}

func (s *Store) FinishRun(ctx context.Context, runID string, status models.RunStatus, now time.Time) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE match_runs SET status = $2, completed_at = $3
		WHERE run_id = $1 AND status <> 'completed'
	`, runID, string(status), now)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.getRun(ctx, runID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}
