// Package service orchestrates matching runs and the suggestion lifecycle.
//
// The service owns every lifecycle transition; the repository only persists.
// Infrastructure facts from the repository (pkg/platform/sentinel) are
// translated into coded domain errors here so transports never see them.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	matchmetrics "matchcore/internal/matching/metrics"
	"matchcore/internal/matching/models"
	"matchcore/internal/matching/ports"
	"matchcore/internal/matching/solver"
	dErrors "matchcore/pkg/domain-errors"
	"matchcore/pkg/platform/sentinel"
)

const tracerName = "matchcore/matching"

// Config holds matching policy. Zero values select defaults.
type Config struct {
	// VectorDim is the agreed preference vector length. Zero accepts any
	// length as long as every candidate in a run shares it.
	VectorDim int
	// SuggestionTTL is how long members have to respond to a suggestion.
	SuggestionTTL time.Duration
	// ChatUnlockWindow sets a lock's chat unlock deadline. Zero disables it.
	ChatUnlockWindow time.Duration
	// RunTimeout bounds a run when the request carries no timeout.
	RunTimeout time.Duration
	Solver     solver.Options
}

const DefaultRunTimeout = 2 * time.Minute

func (c Config) withDefaults() Config {
	if c.SuggestionTTL <= 0 {
		c.SuggestionTTL = models.DefaultSuggestionTTL
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	return c
}

// Service is the matching orchestrator.
type Service struct {
	repo     ports.Repository
	notifier ports.Notifier
	guard    ports.RunGuard
	logger   *slog.Logger
	metrics  *matchmetrics.Metrics
	tracer   trace.Tracer
	cfg      Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *matchmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithRunGuard installs an advisory cohort guard for runs.
func WithRunGuard(g ports.RunGuard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service.
func New(repo ports.Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// publish hands events to the notifier. Failures are logged, never returned:
// state has already been committed.
func (s *Service) publish(ctx context.Context, events []models.Event) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	if err := s.notifier.Publish(ctx, events...); err != nil {
		s.logger.WarnContext(ctx, "failed to publish matching events",
			"events", len(events),
			"type", string(events[0].Type),
			"error", err,
		)
	}
}

// translate maps repository facts to coded errors. Errors that already carry
// a code pass through unchanged.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, msg)
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeExpired, msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeRepository, msg)
}
