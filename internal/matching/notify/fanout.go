package notify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports"
)

// Fanout publishes to every notifier concurrently and returns the first
// failure after all have finished.
type Fanout []ports.Notifier

func (f Fanout) Publish(ctx context.Context, events ...models.Event) error {
	var g errgroup.Group
	for _, n := range f {
		g.Go(func() error {
			return n.Publish(ctx, events...)
		})
	}
	return g.Wait()
}
