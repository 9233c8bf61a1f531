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

	"campaign-engine/internal/admission"
	"campaign-engine/internal/auth"
	"campaign-engine/internal/balancestream"
	"campaign-engine/internal/billing"
	"campaign-engine/internal/config"
	"campaign-engine/internal/heartbeat"
	"campaign-engine/internal/lifecycle"
	"campaign-engine/internal/migrations"
	"campaign-engine/internal/pricing"
	"campaign-engine/internal/runner"
	"campaign-engine/internal/runtime"
	"campaign-engine/internal/scheduler"
	"campaign-engine/internal/store"
	"campaign-engine/internal/supervisor"
	"campaign-engine/internal/warmup"
	"campaign-engine/pkg/logger"
	"campaign-engine/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		panic(err)
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		panic(err)
	}
	defer func() { _ = db.Close() }()

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		panic(err)
	}
	defer func() { _ = rdb.Close() }()

	if err := migrations.Up(db); err != nil {
		log.Error("migration failed", "err", err)
		panic(err)
	}

	st := store.New(db)

	admissionCtl := admission.New(db, st, rdb, cfg.Campaign.GlobalMaxCalls, 0)

	rateCard := billing.PricingRateCard{
		Pricing:         pricing.NewService(&pricing.MemoryRepo{}),
		AIRatePerMinute: 1,
	}
	billingEngine := billing.New(db, st, rateCard).WithPublisher(balancestream.NewPublisher(rdb))

	providerCfg := twilioPlivoConfig{
		TwilioAccountSID: cfg.Twilio.AccountSID,
		TwilioAuthToken:  cfg.Twilio.AuthToken,
		PlivoAuthID:      cfg.Plivo.AuthID,
		PlivoAuthToken:   cfg.Plivo.AuthToken,
	}
	providers := buildProviders(providerCfg)

	// campaignSpawner does the actual work (runs the dial loop); the
	// Supervisor owns it so every runner goroutine is tracked for Shutdown.
	// lifecycle.Controller in turn spawns through the Supervisor, not
	// campaignSpawner directly, so manual starts/resumes are adoption- and
	// shutdown-aware exactly like orphan recoveries.
	spawner := &campaignSpawner{}
	containerID := runtime.ContainerID()
	sup := supervisor.New(st, containerID, spawner, cfg.Campaign.ShutdownGrace, log)
	lifecycleCtl := lifecycle.New(st, billingEngine, supervisedSpawner{sup: sup}, providerCfg.TwilioAccountSID != "", providerCfg.PlivoAuthID != "")

	warmupClient := warmup.New(cfg.Campaign.PublicWebhookBaseURL, cfg.Campaign.BotWarmupRetries, cfg.Campaign.BotWarmupTimeout)
	heartbeatWriter := heartbeat.NewWriter(st, containerID, cfg.Campaign.HeartbeatInterval, log)

	spawner.setRunner(runner.New(st, admissionCtl, lifecycleCtl, providers, log, runner.Config{
		MaxCallsPerMinute: cfg.Campaign.MaxCallsPerMinute,
		AdmissionTimeout:  cfg.Campaign.AdmissionTimeout,
		SubsequentWait:    cfg.Campaign.SubsequentCallWait,
		WebhookBaseURL:    cfg.Campaign.PublicWebhookBaseURL,
		Warmer:            warmupClient,
		Heartbeat:         heartbeatWriter,
	}))

	if err := sup.RecoverOrphans(ctx, cfg.Campaign.OrphanThreshold); err != nil {
		log.Error("orphan recovery failed", "err", err)
	}

	schedulerCancel := scheduler.New(st, lifecycleCtl, cfg.Campaign.SchedulerPollInterval, log).Start(ctx)
	defer schedulerCancel()

	scannerCtx, scannerCancel := context.WithCancel(ctx)
	defer scannerCancel()
	go heartbeat.NewScanner(st, cfg.Campaign.OrphanThreshold, 0, log, sup.ClaimOrphan).Run(scannerCtx)

	janitorCtx, janitorCancel := context.WithCancel(ctx)
	defer janitorCancel()
	go runRateLimitJanitor(janitorCtx, st, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	deps := appDeps{
		authManager: authManager,
		store:       st,
		billing:     billingEngine,
		admission:   admissionCtl,
		lifecycle:   lifecycleCtl,
		providers:   providers,
		rdb:         rdb,
		logger:      log,
	}
	registerRoutes(r, auth.RequireAccessToken(authManager), deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", "err", err)
			panic(err)
		}
		log.Info("server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	sup.Shutdown(shutdownCtx)
	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
