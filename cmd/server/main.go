package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/helium-monitor/internal/backend"
	"github.com/web3-frozen/helium-monitor/internal/config"
	"github.com/web3-frozen/helium-monitor/internal/handler"
	"github.com/web3-frozen/helium-monitor/internal/httpclient"
	"github.com/web3-frozen/helium-monitor/internal/integration"
	"github.com/web3-frozen/helium-monitor/internal/middleware"
	"github.com/web3-frozen/helium-monitor/internal/monitor"
	"github.com/web3-frozen/helium-monitor/internal/sensor"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if cfg.BackendKey == "" {
		logger.Warn("BACKEND_KEY is not set, backend requests will be unauthenticated")
	}

	entries := make([]integration.Entry, 0, len(cfg.Integrations))
	for _, raw := range cfg.Integrations {
		e, err := integration.ParseEntry(raw)
		if err != nil {
			logger.Error("invalid integration", "value", raw, "error", err)
			os.Exit(1)
		}
		entries = append(entries, e)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	deps := integration.Deps{
		Backend:    httpclient.New(cfg.BackendURL, hc),
		BackendKey: cfg.BackendKey,
		Prices:     httpclient.New(cfg.PriceAPIURL, hc),
		Currency:   cfg.Currency,
		CacheTTL:   cfg.CacheTTL,
		Interval:   cfg.UpdateInterval,
		Logger:     logger,
	}

	// Shared Redis cache (retry up to 30s for ExternalSecret to sync)
	if cfg.RedisURL != "" {
		var probe *backend.RedisStore
		var err error
		for i := 0; i < 6; i++ {
			probe, err = backend.NewRedisStore(cfg.RedisURL, cfg.RedisPassword, cfg.CacheRetention)
			if err == nil {
				break
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			logger.Error("failed to connect to redis after retries", "error", err)
			os.Exit(1)
		}
		_ = probe.Close()
		deps.NewStore = func() (backend.Store, error) {
			return backend.NewRedisStore(cfg.RedisURL, cfg.RedisPassword, cfg.CacheRetention)
		}
		logger.Info("redis connected for backend cache", "retention", cfg.CacheRetention)
	}

	// Scheduler and entries
	engine := monitor.NewEngine(logger)
	registry := integration.NewRegistry(deps, engine)
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("closing entries", "error", err)
		}
	}()

	prometheus.MustRegister(sensor.NewCollector(registry.Sensors))

	// /readyz stays 503 until every configured entry is set up.
	registry.Expect(entries...)
	go setupEntries(ctx, registry, entries, cfg.UpdateInterval, logger)
	go engine.Run(ctx)

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(registry))

	r.Route("/api", func(r chi.Router) {
		r.Get("/entries", handler.Entries(registry))
		r.Get("/sensors", handler.Sensors(registry))
		r.Get("/sensors/{id}", handler.Sensor(registry))
		r.Get("/jobs", handler.Jobs(engine))
		r.Post("/jobs/{name}/refresh", handler.RefreshJob(engine))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// setupEntries adds every entry, retrying the ones whose first refresh
// failed once per interval until they succeed or ctx is done. An entry whose
// sensors collide with another entry is never retried and keeps the service
// not ready.
func setupEntries(ctx context.Context, reg *integration.Registry, entries []integration.Entry, interval time.Duration, logger *slog.Logger) {
	pending := entries
	for {
		var retry []integration.Entry
		for _, e := range pending {
			_, err := reg.Add(ctx, e)
			switch {
			case err == nil, errors.Is(err, integration.ErrAlreadyConfigured):
			case ctx.Err() != nil:
				return
			case errors.Is(err, integration.ErrDuplicateSensor):
				logger.Error("entry conflicts with another entry, not retrying", "entry", e.ID(), "error", err)
			default:
				logger.Error("entry not ready, will retry", "entry", e.ID(), "error", err)
				retry = append(retry, e)
			}
		}
		if len(retry) == 0 {
			return
		}
		pending = retry

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
