package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/phoneshop-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/phoneshop-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/phoneshop-backend/api/controllers/payments"
	"github.com/angelmondragon/phoneshop-backend/api/middleware"
	"github.com/angelmondragon/phoneshop-backend/internal/checkout"
	"github.com/angelmondragon/phoneshop-backend/internal/orders"
	"github.com/angelmondragon/phoneshop-backend/internal/payments"
	"github.com/angelmondragon/phoneshop-backend/internal/stats"
	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/metrics"
	"github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

// NewRouter wires the storefront API. store may be nil when redis is not
// configured; idempotent replays are then disabled. metricsHandler may be nil
// to skip the /metrics route.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	store redis.Store,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	checkoutService checkout.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
	statsService stats.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	requireAuth := middleware.Auth(cfg.JWT, logg)
	requireAdmin := middleware.RequireRole(enums.UserRoleAdmin, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.With(
				middleware.OptionalAuth(cfg.JWT, logg),
				middleware.Idempotency(store, middleware.DefaultReplayTTL, logg),
			).Post("/", ordercontrollers.PlaceOrder(checkoutService, logg))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/my-orders", ordercontrollers.MyOrders(ordersService, logg))
				r.Get("/{orderId}", ordercontrollers.Get(ordersService, logg))
				r.Put("/{orderId}/status", ordercontrollers.UpdateStatus(ordersService, logg))

				r.Group(func(r chi.Router) {
					r.Use(requireAdmin)
					r.Get("/", ordercontrollers.List(ordersService, logg))
					r.Put("/{orderId}/payment-status", ordercontrollers.UpdatePaymentStatus(ordersService, logg))
				})
			})
		})

		r.Route("/payment", func(r chi.Router) {
			r.Post("/create-payment-url", paymentcontrollers.CreatePaymentURL(paymentsService, logg))
			r.Get("/payment-callback", paymentcontrollers.PaymentCallback(paymentsService, logg))
		})

		r.With(requireAuth, requireAdmin).Get("/stats", controllers.DashboardStats(statsService, logg))
	})

	return r
}
