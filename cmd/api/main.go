package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/core/reconcile"
	"paybridge/internal/events"
	httpx "paybridge/internal/http"
	"paybridge/internal/metrics"
	"paybridge/internal/provider"
	"paybridge/internal/provider/base"
	"paybridge/internal/provider/bootstrap"
	"paybridge/internal/services/payment"
	"paybridge/internal/store/memory"
	"paybridge/internal/store/postgres"
	"paybridge/internal/store/redis"
	"paybridge/internal/store/repositories"
	"paybridge/internal/webhook"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.App)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer, cfg.App.Env)

	// Stores: redis wins for dedupe, postgres keeps the audit trail, memory otherwise
	var (
		dedupe     repositories.DedupeStore        = memory.NewDedupe()
		deliveries repositories.DeliveryRepository = memory.NewDeliveries()
	)
	if cfg.DB.DSN != "" {
		pool := postgres.MustOpen(ctx, cfg.DB.DSN)
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		repo := postgres.NewRepo(pool)
		dedupe, deliveries = repo, repo
	}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("redis unavailable")
		}
		defer rdb.Close()
		dedupe = redis.NewDedupe(rdb, cfg.Redis.DedupeTTL)
	}
	if cfg.DB.DSN == "" && cfg.Redis.Addr == "" {
		log.Warn().Msg("no DB_DSN or REDIS_ADDR: dedupe state is in-memory and lost on restart")
	}

	// Ledger hand-off: kafka if configured, log sink otherwise, always behind the dispatcher
	var sink repositories.Ledger = events.LogLedger{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		sink = kp
	}
	dispatcher := events.NewDispatcher(sink, cfg.Webhook.Workers, cfg.Webhook.QueueSize, m).
		WithRelease(dedupe)
	dispatcher.Start()

	reg := bootstrap.NewRegistry(cfg)
	router := provider.NewRouter(reg, provider.Strategy(cfg.Routing.Strategy), cfg.App.Env)
	policy := base.RetryPolicy{
		MaxRetries:      uint64(cfg.Outbound.MaxRetries),
		InitialInterval: cfg.Outbound.InitialBackoff,
		MaxInterval:     cfg.Outbound.MaxBackoff,
		AttemptTimeout:  cfg.Outbound.Timeout,
	}
	payments := payment.NewService(reg, router, policy, cfg.App.BaseURL, m)

	hooks := webhook.NewHandler(
		webhook.NewValidator(reg, cfg.Sec.StrictSignatures),
		webhook.NewMapper(),
		dedupe,
		dispatcher,
		deliveries,
		m,
	)

	deps := httpx.RouterDependencies{
		Config:     cfg,
		Registry:   reg,
		Webhooks:   hooks,
		Payments:   payments,
		Deliveries: deliveries,
	}
	if cfg.Reconcile.Enabled {
		worker := reconcile.NewWorker(reg, hooks, cfg.Reconcile.Every, cfg.Reconcile.Overlap, m)
		go worker.Run(ctx)
		deps.Reconciler = worker
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      httpx.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("env", cfg.App.Env).Msgf("PayBridge API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	// drain after the server stops accepting; undrained events get their claims released
	ctx3, cancel3 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel3()
	if err := dispatcher.Close(ctx3); err != nil {
		log.Error().Err(err).Msg("dispatcher did not drain")
	}
	log.Info().Msg("server stopped")
}
