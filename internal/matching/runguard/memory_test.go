package runguard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/pkg/platform/sentinel"
	"matchcore/pkg/requestcontext"
)

func TestMemoryGuard(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("second acquire conflicts until release", func(t *testing.T) {
		g := NewMemoryGuard(time.Minute)
		release, err := g.Acquire(ctx, "matching:cohort:all")
		require.NoError(t, err)

		_, err = g.Acquire(ctx, "matching:cohort:all")
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		_, err = g.Acquire(ctx, "matching:cohort:university:u1")
		assert.NoError(t, err, "other cohorts are independent")

		release(ctx)
		_, err = g.Acquire(ctx, "matching:cohort:all")
		assert.NoError(t, err)
	})

	t.Run("an expired holder is replaced and cannot release its successor", func(t *testing.T) {
		g := NewMemoryGuard(time.Minute)
		stale, err := g.Acquire(ctx, "k")
		require.NoError(t, err)

		later := requestcontext.WithTime(context.Background(), now.Add(2*time.Minute))
		_, err = g.Acquire(later, "k")
		require.NoError(t, err)

		stale(later)
		_, err = g.Acquire(later, "k")
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})
}
