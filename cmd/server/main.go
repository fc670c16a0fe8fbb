package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"keygate/internal/audit"
	"keygate/internal/platform/config"
	"keygate/internal/platform/httpserver"
	"keygate/internal/platform/logger"
	platformredis "keygate/internal/platform/redis"
	registrymemory "keygate/internal/registry/store/memory"
	registrypostgres "keygate/internal/registry/store/postgres"
	httptransport "keygate/internal/transport/http"
	"keygate/internal/verify/metrics"
	"keygate/internal/verify/ports"
	"keygate/internal/verify/service/limiter"
	"keygate/internal/verify/service/quota"
	"keygate/internal/verify/service/usage"
	"keygate/internal/verify/service/verifier"
	"keygate/internal/verify/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	backend, err := store.New(cfg, redisClient)
	if err != nil {
		log.Error("backend setup failed", "error", err)
		os.Exit(1)
	}

	registry, cleanup, err := buildRegistry(cfg)
	if err != nil {
		log.Error("registry setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var auditPub ports.AuditPublisher
	if len(cfg.KafkaSeeds) > 0 {
		kafkaPub, err := audit.NewKafkaPublisher(cfg.KafkaSeeds, cfg.AuditTopic,
			audit.WithKafkaLogger(log))
		if err != nil {
			log.Error("audit publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		auditPub = kafkaPub
	} else {
		auditPub = audit.NewMemoryPublisher()
	}

	limiterSvc, err := limiter.New(backend, limiter.WithLogger(log))
	if err != nil {
		log.Error("limiter setup failed", "error", err)
		os.Exit(1)
	}
	quotaSvc, err := quota.New(backend, quota.WithLogger(log))
	if err != nil {
		log.Error("quota setup failed", "error", err)
		os.Exit(1)
	}
	verifySvc, err := verifier.New(registry, limiterSvc, quotaSvc,
		verifier.WithLogger(log),
		verifier.WithMetrics(metrics.New()),
		verifier.WithAuditPublisher(auditPub),
	)
	if err != nil {
		log.Error("verifier setup failed", "error", err)
		os.Exit(1)
	}
	reporter, err := usage.New(backend, usage.WithLogger(log))
	if err != nil {
		log.Error("usage reporter setup failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(verifySvc, reporter, httptransport.KeyConfig{
		Header:      cfg.KeyHeader,
		QueryParam:  cfg.KeyQueryParam,
		DefaultZone: cfg.DefaultZone,
	}, log)
	router := httptransport.NewRouter(handler)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting keygate", "addr", cfg.Addr, "backend", cfg.Backend)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// buildRegistry picks Postgres when a DSN is configured and otherwise falls
// back to the empty in-memory registry for development.
func buildRegistry(cfg config.Config) (ports.Registry, func(), error) {
	if cfg.PostgresDSN == "" {
		return registrymemory.New(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pgStore, err := registrypostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return pgStore, pgStore.Close, nil
}
