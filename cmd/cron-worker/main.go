package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/horologe/storefront-backend/internal/coupons"
	"github.com/horologe/storefront-backend/internal/cron"
	"github.com/horologe/storefront-backend/internal/orders"
	product "github.com/horologe/storefront-backend/internal/products"
	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/instance"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/outbox"
	"github.com/horologe/storefront-backend/pkg/razorpay"
	"github.com/horologe/storefront-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single maintenance cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		NoColor:     cfg.App.LogNoColor,
	})

	if err := run(cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, once bool) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = db.DriverSQLite
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	gateway, err := razorpay.New(cfg.Razorpay)
	if err != nil {
		return err
	}
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)
	couponService, err := coupons.NewService(
		coupons.NewRepository(dbClient.DB()),
		coupons.NewCache(redisClient, cfg.Coupons.CacheTTL),
		outboxService,
		logg,
	)
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		product.NewRepository(dbClient.DB()),
		couponService,
		gateway,
		logg,
		orders.Options{RequireSignature: cfg.Razorpay.RequireSignature},
	)
	if err != nil {
		return err
	}

	expireJob, err := cron.NewExpireOrdersJob(cron.ExpireOrdersJobParams{
		Orders:    ordersService,
		TTL:       cfg.Cron.UnpaidOrderTTL,
		BatchSize: cfg.Cron.ExpireBatchSize,
	})
	if err != nil {
		return err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outboxRepo,
		RetentionDays: cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return err
	}
	jobs, err := cron.NewRegistry(expireJob, retentionJob)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	if err := dbClient.RegisterMetrics(promRegistry, "storefront"); err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(promRegistry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"interval":  cfg.Cron.Interval.String(),
		"worker_id": instance.GetID(),
	})
	if once {
		logg.Info(ctx, "running single maintenance cycle")
		return service.RunOnce(ctx)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(promRegistry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")
	err = service.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logg.Info(ctx, "cron worker shutting down gracefully")
		return nil
	}
	return err
}
