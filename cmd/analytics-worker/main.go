package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/horologe/storefront-backend/internal/analytics/router"
	"github.com/horologe/storefront-backend/internal/analytics/worker"
	"github.com/horologe/storefront-backend/internal/analytics/writer"
	"github.com/horologe/storefront-backend/pkg/bigquery"
	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/instance"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/outbox/idempotency"
	"github.com/horologe/storefront-backend/pkg/pubsub"
	"github.com/horologe/storefront-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		NoColor:     cfg.App.LogNoColor,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()
	requireResource(ctx, logg, "analytics subscription", pubsubClient.EnsureSubscription(ctx, cfg.PubSub.AnalyticsSubscription))

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery client", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "failed to close bigquery client", err)
		}
	}()

	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency guard", err)

	sink, err := writer.New(bqClient, writer.RetryPolicy{MaxAttempts: cfg.BigQuery.InsertMaxAttempts})
	requireResource(ctx, logg, "order events writer", err)

	routes, err := router.NewRouter(sink, logg)
	requireResource(ctx, logg, "analytics router", err)

	promRegistry := prometheus.NewRegistry()
	service, err := worker.NewService(worker.Params{
		Subscription: pubsubClient.AnalyticsSubscription(),
		Handler:      routes,
		Guard:        guard,
		Logger:       logg,
		Metrics:      metrics.NewAnalyticsMetrics(promRegistry),
	})
	requireResource(ctx, logg, "analytics worker", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.AnalyticsSubscription,
		"worker_id":    instance.GetID(),
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(promRegistry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "metrics server stopped", err)
		}
	}()
	logg.Info(runCtx, "analytics worker ready")

	err = service.Run(runCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "analytics worker stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
