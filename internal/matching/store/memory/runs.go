package memory

import (
	"context"
	"time"

	"matchcore/internal/matching/models"
	"matchcore/pkg/platform/sentinel"
)

func (v *view) CreateRun(_ context.Context, run *models.MatchRun) (*models.MatchRun, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.st.runs[run.RunID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	stored := *run
	v.st.runs[run.RunID] = &stored
	cp := stored
	return &cp, true, nil
}

func (v *view) FinishRun(_ context.Context, runID string, status models.RunStatus, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	run, ok := v.st.runs[runID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if run.Status == models.RunStatusCompleted {
		return sentinel.ErrInvalidState
	}
	run.Status = status
	run.CompletedAt = &now
	return nil
}
