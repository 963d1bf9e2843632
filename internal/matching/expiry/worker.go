// Package expiry sweeps suggestions and chat-unlock deadlines that have
// passed. Every sweep is a set of conditional writes, so overlapping sweeps
// and concurrent orchestrator calls never double-transition a row.
package expiry

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	matchmetrics "matchcore/internal/matching/metrics"
	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/requestcontext"
)

// Store is the slice of the repository the worker writes through.
type Store interface {
	ExpireSuggestions(ctx context.Context, now time.Time) ([]*models.Suggestion, error)
	ArchiveOverdueLocks(ctx context.Context, now time.Time) ([]*models.MatchLock, error)
}

// SuggestionSweep reports an ExpireSuggestions call.
type SuggestionSweep struct {
	Changed     int                  `json:"changed"`
	Suggestions []*models.Suggestion `json:"-"`
}

// LockSweep reports an ExpireLocks call.
type LockSweep struct {
	Archived int                 `json:"archived"`
	Locks    []*models.MatchLock `json:"-"`
}

// SweepResult combines both sweeps.
type SweepResult struct {
	Suggestions *SuggestionSweep
	Locks       *LockSweep
}

type Worker struct {
	store    Store
	notifier ports.Notifier
	logger   *slog.Logger
	metrics  *matchmetrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *matchmetrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(w *Worker) {
		w.notifier = n
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(w *Worker) {
		w.tracer = t
	}
}

func New(store Store, opts ...Option) *Worker {
	w := &Worker{store: store}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if w.tracer == nil {
		w.tracer = otel.Tracer("matchcore/expiry")
	}
	return w
}

// ExpireSuggestions moves every pending or accepted suggestion whose deadline
// is before now to expired and notifies its members. Running it twice in a
// row reports zero changes the second time.
func (w *Worker) ExpireSuggestions(ctx context.Context) (*SuggestionSweep, error) {
	now := requestcontext.Now(ctx)
	ctx, span := w.tracer.Start(ctx, "expiry.suggestions", trace.WithAttributes(attribute.String("now", now.Format(time.RFC3339))))
	defer span.End()

	changed, err := w.store.ExpireSuggestions(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expire suggestions failed")
		return nil, dErrors.Wrap(err, dErrors.CodeRepository, "failed to expire suggestions")
	}
	span.SetAttributes(attribute.Int("changed", len(changed)))
	w.metrics.AddSuggestionsExpired(len(changed))

	var events []models.Event
	for _, s := range changed {
		events = append(events, models.SuggestionEvents(models.EventSuggestionExpired, s, now)...)
	}
	w.publish(ctx, events)

	if len(changed) > 0 {
		w.logger.InfoContext(ctx, "suggestions expired", "changed", len(changed))
	}
	return &SuggestionSweep{Changed: len(changed), Suggestions: changed}, nil
}

// ExpireLocks archives locks whose chat unlock deadline passed without every
// member confirming. Archived locks free their members and never re-fire.
func (w *Worker) ExpireLocks(ctx context.Context) (*LockSweep, error) {
	now := requestcontext.Now(ctx)
	ctx, span := w.tracer.Start(ctx, "expiry.locks")
	defer span.End()

	archived, err := w.store.ArchiveOverdueLocks(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive locks failed")
		return nil, dErrors.Wrap(err, dErrors.CodeRepository, "failed to archive overdue locks")
	}
	span.SetAttributes(attribute.Int("archived", len(archived)))
	w.metrics.AddLocksArchived(len(archived))

	var events []models.Event
	for _, l := range archived {
		events = append(events, models.LockEvents(models.EventLockArchived, l, now)...)
	}
	w.publish(ctx, events)

	if len(archived) > 0 {
		w.logger.InfoContext(ctx, "locks archived", "archived", len(archived), "reason", models.LockReasonUnlockDeadline)
	}
	return &LockSweep{Archived: len(archived), Locks: archived}, nil
}

// Sweep runs both sweeps concurrently against one pinned clock.
func (w *Worker) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))
	result := &SweepResult{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweep, err := w.ExpireSuggestions(gctx)
		result.Suggestions = sweep
		return err
	})
	g.Go(func() error {
		sweep, err := w.ExpireLocks(gctx)
		result.Locks = sweep
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Start sweeps every interval until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (w *Worker) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Worker) publish(ctx context.Context, events []models.Event) {
	if w.notifier == nil || len(events) == 0 {
		return
	}
	if err := w.notifier.Publish(context.WithoutCancel(ctx), events...); err != nil {
		w.logger.WarnContext(ctx, "failed to publish expiry events", "events", len(events), "error", err)
	}
}
