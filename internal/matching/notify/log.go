// Package notify delivers matching events to the notification service.
package notify

import (
	"context"
	"log/slog"

	"matchcore/internal/matching/models"
)

// LogNotifier writes events to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(ctx context.Context, events ...models.Event) error {
	for _, e := range events {
		n.logger.InfoContext(ctx, "matching event",
			"type", string(e.Type),
			"user_id", e.UserID,
			"run_id", e.RunID,
			"suggestion_id", e.SuggestionID,
			"lock_id", e.LockID,
		)
	}
	return nil
}
