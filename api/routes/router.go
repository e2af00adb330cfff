package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/contact"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer needs for rate
// limits and idempotency.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type quoteService interface {
	Quote(ctx context.Context, input pricing.QuoteInput) (*pricing.Quote, error)
}

// Deps carries everything the router wires into handlers. Nil services
// produce handlers that answer 500.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          RedisStore
	RedisPinger    controllers.Pinger
	Sessions       session.AccessSessionChecker
	Gatherer       prometheus.Gatherer
	HTTPMetrics    *metrics.HTTPMetrics
	AuthService    auth.Service
	ProductService products.Service
	PricingService quoteService
	Checkout       checkoutsvc.Service
	OrderService   orders.Service
	ContactService contact.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	loginPolicy := middleware.AdminLoginLimit(
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	limits := cfg.RateLimit

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.RedisPinger,
		}))
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", controllers.PublicListProducts(deps.ProductService, logg))
		r.Get("/products/{productId}", controllers.PublicGetProduct(deps.ProductService, logg))

		r.With(middleware.RateLimit(middleware.StorefrontLimit("checkout", limits.Window, limits.CheckoutLimit), deps.Redis, logg)).
			Post("/checkout", controllers.CheckoutQuote(deps.PricingService, logg))
		r.With(
			middleware.RateLimit(middleware.StorefrontLimit("verify", limits.Window, limits.VerifyLimit), deps.Redis, logg),
			middleware.Idempotency(deps.Redis, logg),
		).Post("/verify-payment", controllers.VerifyPayment(deps.Checkout, logg))
		r.With(middleware.RateLimit(middleware.StorefrontLimit("contact", limits.Window, limits.ContactLimit), deps.Redis, logg)).
			Post("/contact", controllers.ContactSubmit(deps.ContactService, logg))

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AdminLogin(deps.AuthService, logg))
			r.Post("/refresh", controllers.AdminRefresh(deps.AuthService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
				r.Use(middleware.Idempotency(deps.Redis, logg))

				r.Post("/logout", controllers.AdminLogout(deps.AuthService, logg))

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.AdminListOrders(deps.OrderService, logg))
					r.Get("/{orderId}", controllers.AdminGetOrder(deps.OrderService, logg))
					r.Put("/{orderId}", controllers.AdminUpdateOrderStatus(deps.OrderService, logg))
					r.Delete("/{orderId}", controllers.AdminDeleteOrder(deps.OrderService, logg))
				})

				r.Route("/products", func(r chi.Router) {
					r.Post("/", controllers.AdminCreateProduct(deps.ProductService, logg))
					r.Put("/{productId}", controllers.AdminUpdateProduct(deps.ProductService, logg))
					r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.ProductService, logg))
				})
			})
		})
	})

	return r
}
