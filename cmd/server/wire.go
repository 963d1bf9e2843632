package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	matchmetrics "matchcore/internal/matching/metrics"
	"matchcore/internal/matching/notify"
	"matchcore/internal/matching/ports"
	"matchcore/internal/matching/runguard"
	"matchcore/internal/matching/service"
	"matchcore/internal/matching/solver"
	"matchcore/internal/matching/store/memory"
	pgstore "matchcore/internal/matching/store/postgres"
	"matchcore/internal/platform/config"
	"matchcore/internal/platform/kafka"
	"matchcore/internal/platform/postgres"
	"matchcore/internal/platform/redis"
)

// deps holds the infrastructure behind the matching service.
type deps struct {
	Repo     ports.Repository
	Guard    ports.RunGuard
	Notifier ports.Notifier
	Metrics  *matchmetrics.Metrics

	health  []func(context.Context) error
	closers []func() error
}

// buildDeps connects to every configured backend. Postgres, Redis and Kafka
// are optional; without them the process runs on in-memory state, an
// in-process run guard, and log-only notifications.
func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*deps, error) {
	d := &deps{Metrics: matchmetrics.NewWithRegisterer(reg)}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		d.health = append(d.health, db.PingContext)
		if cfg.Database.Migrate {
			if err := postgres.Migrate(db); err != nil {
				d.Close()
				return nil, err
			}
			log.Info("database migrations applied")
		}
		d.Repo = pgstore.New(db)
	} else {
		log.Warn("DATABASE_URL not set; using in-memory store")
		d.Repo = memory.NewInMemory()
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		d.Close()
		return nil, err
	}
	if rdb != nil {
		d.closers = append(d.closers, rdb.Close)
		d.health = append(d.health, func(ctx context.Context) error { return redis.Health(ctx, rdb) })
		d.Guard = runguard.NewRedisGuard(rdb,
			runguard.WithTTL(cfg.Redis.GuardTTL),
			runguard.WithLogger(log),
		)
	} else {
		d.Guard = runguard.NewMemoryGuard(cfg.Redis.GuardTTL)
	}

	notifiers := notify.Fanout{notify.NewLogNotifier(log)}
	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		d.Close()
		return nil, err
	}
	if client != nil {
		d.closers = append(d.closers, func() error { client.Close(); return nil })
		d.health = append(d.health, func(ctx context.Context) error { return kafka.Health(ctx, client) })
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.NotifyTopic, 3, 1); err != nil {
			log.Warn("could not ensure notify topic", "topic", cfg.Kafka.NotifyTopic, "error", err)
		}
		notifiers = append(notifiers, notify.NewKafkaNotifier(client, cfg.Kafka.NotifyTopic, notify.WithKafkaLogger(log)))
	}
	d.Notifier = notifiers
	return d, nil
}

// Health reports the first unhealthy backend.
func (d *deps) Health(ctx context.Context) error {
	for _, check := range d.health {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases backends in reverse order of acquisition.
func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close dependencies: %w", errors.Join(errs...))
	}
	return nil
}

func serviceConfig(m config.MatchingConfig) service.Config {
	return service.Config{
		VectorDim:        m.VectorDim,
		SuggestionTTL:    m.SuggestionTTL,
		ChatUnlockWindow: m.ChatUnlockWindow,
		RunTimeout:       m.RunTimeout,
		Solver: solver.Options{
			ExactLimit:    m.ExactLimit,
			MaxIterations: m.SolverIterations,
			Seed:          m.SolverSeed,
			MinScore:      m.MinScore,
		},
	}
}
