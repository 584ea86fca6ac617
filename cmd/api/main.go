package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/affiliatez-backend/api/controllers"
	"github.com/angelmondragon/affiliatez-backend/api/routes"
	"github.com/angelmondragon/affiliatez-backend/internal/affiliates"
	"github.com/angelmondragon/affiliatez-backend/internal/discountcodes"
	"github.com/angelmondragon/affiliatez-backend/internal/merchants"
	"github.com/angelmondragon/affiliatez-backend/internal/notifications"
	"github.com/angelmondragon/affiliatez-backend/internal/orders"
	"github.com/angelmondragon/affiliatez-backend/internal/payouts"
	"github.com/angelmondragon/affiliatez-backend/internal/stats"
	"github.com/angelmondragon/affiliatez-backend/pkg/config"
	"github.com/angelmondragon/affiliatez-backend/pkg/db"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
	"github.com/angelmondragon/affiliatez-backend/pkg/metrics"
	"github.com/angelmondragon/affiliatez-backend/pkg/migrate"
	"github.com/angelmondragon/affiliatez-backend/pkg/outbox"
	"github.com/angelmondragon/affiliatez-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	merchantService, err := merchants.NewService(merchants.ServiceParams{
		Repo:        merchants.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		PasswordCfg: cfg.Password,
		JWTCfg:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create merchant service", err)
		os.Exit(1)
	}

	issuer, err := discountcodes.New(cfg.DiscountCodes)
	if err != nil {
		logg.Error(context.Background(), "failed to create discount code issuer", err)
		os.Exit(1)
	}

	notifier, err := notifications.NewOutboxNotifier(dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create affiliate notifier", err)
		os.Exit(1)
	}

	affiliateService, err := affiliates.NewService(affiliates.ServiceParams{
		Repo:          affiliates.NewRepository(dbClient.DB()),
		Merchants:     merchantService,
		Tx:            dbClient,
		Issuer:        issuer,
		Notifier:      notifier,
		PasswordCfg:   cfg.Password,
		IssueTimeout:  cfg.DiscountCodes.Timeout,
		NotifyTimeout: cfg.Notifications.Timeout,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create affiliate service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:       ordersRepo,
		Merchants:  merchantService,
		Affiliates: affiliateService,
		Tx:         dbClient,
		Metrics:    metrics.NewIngestionMetrics(registry),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	statsService, err := stats.NewService(stats.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create stats service", err)
		os.Exit(1)
	}

	executor, err := payouts.NewOutboxExecutor(dbClient, ordersRepo, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout executor", err)
		os.Exit(1)
	}
	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Orders:        ordersRepo,
		Executor:      executor,
		Locks:         redisClient,
		LockTTL:       cfg.Payouts.LockTTL,
		ResubmitAfter: cfg.Payouts.ResubmitAfter,
		Metrics:       metrics.NewPayoutMetrics(registry),
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(
		cfg,
		logg,
		map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
		registry,
		merchantService,
		affiliateService,
		orderService,
		statsService,
		payoutService,
	)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, server, shutdownTimeout); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
