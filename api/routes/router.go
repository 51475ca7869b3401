package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/horologe/storefront-backend/api/controllers"
	"github.com/horologe/storefront-backend/api/middleware"
	"github.com/horologe/storefront-backend/internal/analytics"
	"github.com/horologe/storefront-backend/internal/auth"
	"github.com/horologe/storefront-backend/internal/cart"
	checkoutsvc "github.com/horologe/storefront-backend/internal/checkout"
	"github.com/horologe/storefront-backend/internal/coupons"
	"github.com/horologe/storefront-backend/internal/inquiries"
	"github.com/horologe/storefront-backend/internal/orders"
	product "github.com/horologe/storefront-backend/internal/products"
	"github.com/horologe/storefront-backend/internal/settings"
	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/redis"
)

// requestStore backs idempotency replay and rate limiting.
type requestStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Services groups the domain services mounted by the router. Analytics is
// optional; the sales report answers 404 without it.
type Services struct {
	Products       product.Service
	Carts          cart.Service
	Coupons        coupons.Service
	CouponResolver *coupons.Resolver
	Checkout       checkoutsvc.Service
	Orders         orders.Service
	Settings       settings.Service
	Inquiries      inquiries.Service
	Auth           auth.Service
	Analytics      analytics.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	store requestStore,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	couponPolicy := middleware.NewRateLimitPolicy("coupon", cfg.RateLimit.CouponWindow, cfg.RateLimit.CouponIPLimit)
	trackPolicy := middleware.NewRateLimitPolicy("track", cfg.RateLimit.TrackWindow, cfg.RateLimit.TrackIPLimit)
	loginPolicy := middleware.NewRateLimitPolicy("login", cfg.RateLimit.LoginWindow, cfg.RateLimit.LoginIPLimit)
	contactPolicy := middleware.NewRateLimitPolicy("contact", cfg.RateLimit.ContactWindow, cfg.RateLimit.ContactIPLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(store, logg))

		r.Post("/create-order", controllers.CreateOrder(svcs.Orders, logg))
		r.Post("/verify-payment", controllers.VerifyPayment(svcs.Orders, logg))
		r.With(middleware.RateLimit(couponPolicy, store, logg)).
			Post("/rpc/validate_coupon", controllers.ValidateCoupon(svcs.Coupons, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(svcs.Products, logg))
			r.Get("/{productId}", controllers.ProductDetail(svcs.Products, logg))
		})

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", controllers.CartCreate(svcs.Carts, logg))
			r.Route("/{cartId}", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svcs.Carts, logg))
				r.Get("/quote", controllers.CheckoutQuote(svcs.Checkout, logg))
				r.Post("/items", controllers.CartAddItem(svcs.Carts, logg))
				r.Post("/items/{productId}/increment", controllers.CartIncrement(svcs.Carts, logg))
				r.Post("/items/{productId}/decrement", controllers.CartDecrement(svcs.Carts, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(svcs.Carts, logg))
				r.With(middleware.RateLimit(couponPolicy, store, logg)).
					Post("/coupon", controllers.CartApplyCoupon(svcs.CouponResolver, logg))
				r.Delete("/coupon", controllers.CartRemoveCoupon(svcs.CouponResolver, logg))
			})
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutSubmit(svcs.Checkout, logg))
			r.Get("/{attemptId}", controllers.CheckoutFetch(svcs.Checkout, logg))
			r.Post("/{attemptId}/confirm-payment", controllers.CheckoutConfirmPayment(svcs.Checkout, logg))
			r.Post("/{attemptId}/dismiss", controllers.CheckoutDismiss(svcs.Checkout, logg))
		})

		r.Get("/payment-settings", controllers.PaymentSettings(svcs.Settings, logg))
		r.With(middleware.RateLimit(trackPolicy, store, logg)).
			Get("/orders/track", controllers.TrackOrders(svcs.Orders, logg))
		r.With(middleware.RateLimit(contactPolicy, store, logg)).
			Post("/contact", controllers.ContactSubmit(svcs.Inquiries, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, store, logg)).
			Post("/login", controllers.AdminLogin(svcs.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.Admin, logg))
			r.Use(middleware.Idempotency(store, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminProductList(svcs.Products, logg))
				r.Post("/", controllers.AdminProductCreate(svcs.Products, logg))
				r.Get("/{productId}", controllers.AdminProductDetail(svcs.Products, logg))
				r.Put("/{productId}", controllers.AdminProductUpdate(svcs.Products, logg))
				r.Delete("/{productId}", controllers.AdminProductArchive(svcs.Products, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", controllers.AdminCouponList(svcs.Coupons, logg))
				r.Post("/", controllers.AdminCouponCreate(svcs.Coupons, logg))
				r.Get("/{couponId}", controllers.AdminCouponDetail(svcs.Coupons, logg))
				r.Put("/{couponId}", controllers.AdminCouponUpdate(svcs.Coupons, logg))
				r.Delete("/{couponId}", controllers.AdminCouponDelete(svcs.Coupons, logg))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/payment", controllers.PaymentSettings(svcs.Settings, logg))
				r.Put("/payment", controllers.AdminUpdatePaymentSettings(svcs.Settings, logg))
				r.Get("/collection", controllers.AdminCollectionSettings(svcs.Settings, logg))
				r.Put("/collection", controllers.AdminUpdateCollectionSettings(svcs.Settings, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrderList(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.AdminOrderDetail(svcs.Orders, logg))
				r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(svcs.Orders, logg))
			})

			r.Route("/inquiries", func(r chi.Router) {
				r.Get("/", controllers.AdminInquiryList(svcs.Inquiries, logg))
				r.Patch("/{inquiryId}/status", controllers.AdminInquiryUpdateStatus(svcs.Inquiries, logg))
			})

			r.Get("/analytics/sales", controllers.AdminSalesReport(svcs.Analytics, logg))
		})
	})

	return r
}
