package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"matchcore/internal/matching/expiry"
	"matchcore/internal/matching/handler"
	"matchcore/internal/matching/service"
	"matchcore/internal/platform/config"
	"matchcore/internal/platform/httpserver"
	"matchcore/internal/platform/logger"
	platformmetrics "matchcore/internal/platform/metrics"
	"matchcore/internal/platform/middleware"
	"matchcore/internal/platform/tracing"
	"matchcore/pkg/platform/httputil"
)

// main wires dependencies, exposes the HTTP router, and runs the expiry
// worker. Business logic lives in internal/matching.
func main() {
	cfg, warnings := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn("ignoring invalid configuration", "detail", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("matchcore stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	infra, err := buildDeps(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer infra.Close()

	tp, err := tracing.New(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	svc := service.New(infra.Repo,
		service.WithLogger(log),
		service.WithMetrics(infra.Metrics),
		service.WithNotifier(infra.Notifier),
		service.WithRunGuard(infra.Guard),
		service.WithConfig(serviceConfig(cfg.Matching)),
		service.WithTracer(tp.Tracer("matchcore/matching")),
	)
	worker := expiry.New(infra.Repo,
		expiry.WithLogger(log),
		expiry.WithTracer(tp.Tracer("matchcore/expiry")),
		expiry.WithMetrics(infra.Metrics),
		expiry.WithNotifier(infra.Notifier),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log, platformmetrics.NewHTTP(reg)))
	r.Use(middleware.Recover(log))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := infra.Health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	var validator middleware.CallerValidator
	if cfg.Auth.AdminJWTSigningKey != "" {
		validator = middleware.NewHS256Validator(cfg.Auth.AdminJWTSigningKey, "")
	} else {
		log.Warn("ADMIN_JWT_SIGNING_KEY not set; only the cron secret is accepted")
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCaller(validator, cfg.Auth.CronSecret, log))
		handler.New(svc, worker, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting matchcore", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Matching.SweepInterval > 0 {
		g.Go(func() error {
			log.Info("expiry worker started", "interval", cfg.Matching.SweepInterval.String())
			if err := worker.Start(gctx, cfg.Matching.SweepInterval); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
