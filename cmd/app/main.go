package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rahala-payments/internal/config"
	pg "rahala-payments/internal/infra/db/postgres"
	"rahala-payments/internal/infra/logging"
	"rahala-payments/internal/infra/metrics"
	"rahala-payments/internal/infra/notify"
	payAdapters "rahala-payments/internal/infra/payment"
	red "rahala-payments/internal/infra/redis"
	"rahala-payments/internal/infra/sched"
	"rahala-payments/internal/infra/web"
	"rahala-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	subPlanRepo := pg.NewSubscriptionPlanRepo(pool)
	promoPlanRepo := pg.NewPromotionPlanRepo(pool)
	promotionRepo := pg.NewPromotionRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Gateway ----
	gateway, err := payAdapters.NewPayMobGateway(cfg.PayMob, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("paymob gateway init failed")
	}
	verifier := payAdapters.NewSignatureVerifier(cfg.PayMob.HMACSecret, logger)

	// ---- Use cases ----
	notifier := notify.NewLogNotifier(logger)
	activator := usecase.NewEntitlementActivator(userRepo, subPlanRepo, promotionRepo, notifier, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, userRepo, subPlanRepo, gateway, activator, logger)
	subUC := usecase.NewSubscriptionUseCase(userRepo, subPlanRepo, logger)
	promoUC := usecase.NewPromotionUseCase(promotionRepo, promoPlanRepo, paymentRepo, userRepo, paymentUC, tm, notifier, logger)

	// ---- Background workers ----
	reconciler := sched.NewPaymentReconciler(
		paymentUC, paymentRepo, gateway, locker,
		cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStaleAfter, logger,
	)
	go func() { _ = reconciler.Run(ctx) }()

	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, promoUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(cfg, paymentUC, subUC, promoUC, verifier, rateLimiter, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
