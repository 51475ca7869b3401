package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/horologe/storefront-backend/api/controllers"
	"github.com/horologe/storefront-backend/api/routes"
	"github.com/horologe/storefront-backend/internal/analytics"
	"github.com/horologe/storefront-backend/internal/analytics/query"
	"github.com/horologe/storefront-backend/internal/auth"
	"github.com/horologe/storefront-backend/internal/cart"
	"github.com/horologe/storefront-backend/internal/checkout"
	"github.com/horologe/storefront-backend/internal/coupons"
	"github.com/horologe/storefront-backend/internal/inquiries"
	"github.com/horologe/storefront-backend/internal/orders"
	product "github.com/horologe/storefront-backend/internal/products"
	"github.com/horologe/storefront-backend/internal/settings"
	"github.com/horologe/storefront-backend/pkg/bigquery"
	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/migrate"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/outbox"
	"github.com/horologe/storefront-backend/pkg/pubsub"
	"github.com/horologe/storefront-backend/pkg/razorpay"
	"github.com/horologe/storefront-backend/pkg/redis"
	"github.com/horologe/storefront-backend/pkg/security"
)

const (
	serviceName     = "api"
	shutdownTimeout = 20 * time.Second
)

func main() {
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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// closer collects resources released on shutdown, in reverse order.
type closer struct {
	fns []func() error
}

func (c *closer) add(fn func() error) {
	c.fns = append(c.fns, fn)
}

func (c *closer) close() error {
	var err error
	for i := len(c.fns) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.fns[i]())
	}
	return err
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx := context.Background()
	resources := &closer{}
	defer func() {
		if closeErr := resources.close(); closeErr != nil {
			logg.Error(ctx, "error releasing resources", closeErr)
		}
	}()

	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = db.DriverSQLite
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	resources.add(dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	resources.add(redisClient.Close)

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	if cfg.FeatureFlags.PublishEvents && cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		resources.add(pubsubClient.Close)
		readiness["pubsub"] = pubsubClient
	}

	gateway, err := razorpay.New(cfg.Razorpay)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := dbClient.RegisterMetrics(promRegistry, "storefront"); err != nil {
		return err
	}
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)
	checkoutMetrics := metrics.NewCheckoutMetrics(promRegistry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	productRepo := product.NewRepository(dbClient.DB())

	productService, err := product.NewService(productRepo)
	if err != nil {
		return err
	}
	cartStore, err := cart.NewStore(redisClient, cfg.Checkout.CartTTL)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cartStore, productRepo, logg)
	if err != nil {
		return err
	}
	couponService, err := coupons.NewService(
		coupons.NewRepository(dbClient.DB()),
		coupons.NewCache(redisClient, cfg.Coupons.CacheTTL),
		outboxService,
		logg,
	)
	if err != nil {
		return err
	}
	couponResolver, err := coupons.NewResolver(couponService, cartService)
	if err != nil {
		return err
	}
	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()), money.Paise(cfg.Checkout.DefaultShippingPaise))
	if err != nil {
		return err
	}
	inquiryService, err := inquiries.NewService(inquiries.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		productRepo,
		couponService,
		gateway,
		logg,
		orders.Options{RequireSignature: cfg.Razorpay.RequireSignature},
	)
	if err != nil {
		return err
	}

	var orderClient checkout.OrderClient = ordersService
	if cfg.Checkout.OrderServiceURL != "" {
		orderClient, err = checkout.NewHTTPOrderClient(cfg.Checkout.OrderServiceURL, cfg.Checkout.OrderServiceTimeout)
		if err != nil {
			return err
		}
	}
	checkoutService, err := checkout.NewService(
		cartService,
		settingsService,
		couponService,
		orderClient,
		checkout.NewAttemptStore(redisClient, cfg.Checkout.AttemptTTL),
		redisClient,
		checkoutMetrics,
		logg,
		checkout.Options{SubmitLockTTL: cfg.Checkout.SubmitLockTTL, StepLockTTL: cfg.Checkout.StepLockTTL},
	)
	if err != nil {
		return err
	}

	hasher, err := security.NewHasher(cfg.Password)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(cfg.Admin, hasher, logg)
	if err != nil {
		return err
	}

	var analyticsService analytics.Service
	if cfg.FeatureFlags.SalesReports {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return err
		}
		resources.add(bqClient.Close)
		readiness["bigquery"] = bqClient
		sales, err := query.NewSalesService(query.NewClientQuerier(bqClient))
		if err != nil {
			return err
		}
		if analyticsService, err = analytics.NewService(sales); err != nil {
			return err
		}
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		readiness,
		redisClient,
		httpMetrics,
		metrics.Handler(promRegistry),
		routes.Services{
			Products:       productService,
			Carts:          cartService,
			Coupons:        couponService,
			CouponResolver: couponResolver,
			Checkout:       checkoutService,
			Orders:         ordersService,
			Settings:       settingsService,
			Inquiries:      inquiryService,
			Auth:           authService,
			Analytics:      analyticsService,
		},
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logCtx := logg.WithFields(signalCtx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          server.Addr,
		"order_service": orderServiceMode(cfg),
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-signalCtx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(signalCtx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func orderServiceMode(cfg *config.Config) string {
	if cfg.Checkout.OrderServiceURL != "" {
		return "remote"
	}
	return "in_process"
}
