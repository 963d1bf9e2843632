package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"matchcore/internal/matching/models"
	"matchcore/pkg/platform/sentinel"
)

func suggestionKey(runID, groupKey string) string {
	return runID + "/" + groupKey
}

func (v *view) CreateSuggestions(_ context.Context, suggestions []*models.Suggestion) ([]*models.Suggestion, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var created []*models.Suggestion
	for _, s := range suggestions {
		key := suggestionKey(s.RunID, s.GroupKey())
		if _, exists := v.st.suggestionKeys[key]; exists {
			continue
		}
		s.Version = 1
		v.st.suggestions[s.ID] = s.Clone()
		v.st.suggestionKeys[key] = s.ID
		created = append(created, s)
	}
	return created, nil
}

func (v *view) UpdateSuggestion(_ context.Context, s *models.Suggestion) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	stored, ok := v.st.suggestions[s.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != s.Version {
		return sentinel.ErrConflict
	}
	next := s.Clone()
	next.Version++
	v.st.suggestions[s.ID] = next
	s.Version = next.Version
	return nil
}

func (v *view) GetSuggestion(_ context.Context, id string) (*models.Suggestion, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.st.suggestions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.Clone(), nil
}

func (v *view) ListSuggestionsForUser(_ context.Context, userID string, includeAll bool) ([]*models.Suggestion, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []*models.Suggestion
	for _, s := range v.st.suggestions {
		if !s.HasMember(userID) || (!includeAll && !s.Status.IsActive()) {
			continue
		}
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Suggestion) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (v *view) ListSuggestionsByRun(_ context.Context, runID string) ([]*models.Suggestion, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []*models.Suggestion
	for _, s := range v.st.suggestions {
		if s.RunID == runID {
			out = append(out, s.Clone())
		}
	}
	sortByScore(out)
	return out, nil
}

func sortByScore(out []*models.Suggestion) {
	slices.SortFunc(out, func(a, b *models.Suggestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.GroupKey(), b.GroupKey())
	})
}

func (v *view) ExpireSuggestions(_ context.Context, now time.Time) ([]*models.Suggestion, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var changed []*models.Suggestion
	for id, s := range v.st.suggestions {
		if !s.Status.IsActive() || !s.IsPastDeadline(now) {
			continue
		}
		next := s.Clone()
		next.Status = models.SuggestionStatusExpired
		next.UpdatedAt = now
		next.Version++
		v.st.suggestions[id] = next
		changed = append(changed, next.Clone())
	}
	slices.SortFunc(changed, func(a, b *models.Suggestion) int { return cmp.Compare(a.ID, b.ID) })
	return changed, nil
}
