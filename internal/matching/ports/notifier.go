package ports

//go:generate mockgen -source=notifier.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"matchcore/internal/matching/models"
)

// Notifier hands events to the notification service. Delivery is not the
// engine's concern; a failed publish is logged by callers, never retried.
type Notifier interface {
	Publish(ctx context.Context, events ...models.Event) error
}

// RunGuard is an advisory, cohort-scoped mutual exclusion for runs.
// Correctness never depends on it; LockMatch atomicity does.
type RunGuard interface {
	// Acquire returns a release func, or sentinel.ErrConflict when another
	// run already holds key.
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}
