package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/instance"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/outbox"
	"github.com/horologe/storefront-backend/pkg/outbox/registry"
	"github.com/horologe/storefront-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

// dlqCommand is set when the binary runs as a one-shot dead letter tool.
type dlqCommand struct {
	list   bool
	limit  int
	replay string
}

func (c dlqCommand) requested() bool { return c.list || c.replay != "" }

func main() {
	var cmd dlqCommand
	flag.BoolVar(&cmd.list, "list-dlq", false, "print dead-lettered events as JSON lines and exit")
	flag.IntVar(&cmd.limit, "limit", 50, "maximum dead letters printed by -list-dlq")
	flag.StringVar(&cmd.replay, "replay", "", "move a dead-lettered event back to the outbox and exit")
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

	if err := run(cfg, logg, cmd); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, cmd dlqCommand) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	dlq := outbox.NewDLQRepository(dbClient.DB())
	if cmd.requested() {
		return runDLQCommand(ctx, logg, dlq, cmd)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	if err := dbClient.RegisterMetrics(promRegistry, "storefront"); err != nil {
		return err
	}
	relay, err := NewRelay(RelayParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Topics:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		DLQ:        dlq,
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(promRegistry),
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"topic":     cfg.PubSub.OrdersTopic,
		"worker_id": instance.GetID(),
	})
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

	logg.Info(ctx, "starting outbox publisher")
	err = relay.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logg.Info(ctx, "outbox publisher shutting down gracefully")
		return nil
	}
	return err
}

func runDLQCommand(ctx context.Context, logg *logger.Logger, dlq dlqOperator, cmd dlqCommand) error {
	if cmd.list {
		return printDeadLetters(ctx, dlq, cmd.limit, os.Stdout)
	}
	if err := replayDeadLetter(ctx, dlq, cmd.replay); err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "event_id", cmd.replay), "dead letter requeued")
	return nil
}
