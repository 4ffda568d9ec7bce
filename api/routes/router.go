package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emekandu/kasuwa-backend/api/controllers"
	"github.com/emekandu/kasuwa-backend/api/middleware"
	"github.com/emekandu/kasuwa-backend/internal/auth"
	"github.com/emekandu/kasuwa-backend/internal/credits"
	"github.com/emekandu/kasuwa-backend/internal/inspections"
	"github.com/emekandu/kasuwa-backend/internal/items"
	"github.com/emekandu/kasuwa-backend/internal/notifications"
	"github.com/emekandu/kasuwa-backend/internal/offers"
	"github.com/emekandu/kasuwa-backend/internal/orders"
	"github.com/emekandu/kasuwa-backend/internal/payments"
	"github.com/emekandu/kasuwa-backend/pkg/auth/session"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db"
	"github.com/emekandu/kasuwa-backend/pkg/logger"
	"github.com/emekandu/kasuwa-backend/pkg/redis"
)

// Services bundles everything the router mounts.
type Services struct {
	Auth          auth.Service
	Items         items.Service
	Offers        offers.Service
	Orders        orders.Service
	Payments      payments.Service
	Inspections   inspections.Service
	Notifications notifications.Service
	Credits       credits.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
	})

	// Public browse surface
	r.Route("/api/v1/items", func(r chi.Router) {
		r.Get("/", controllers.ItemsList(svcs.Items, logg))
		r.Get("/{itemId}", controllers.ItemGet(svcs.Items, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Use(middleware.Idempotency(redisClient, logg))
			r.Post("/", controllers.ItemCreate(svcs.Items, logg))
			r.Patch("/{itemId}", controllers.ItemUpdate(svcs.Items, logg))
			r.Delete("/{itemId}", controllers.ItemDelete(svcs.Items, logg))
			r.Post("/{itemId}/offers", controllers.OfferCreate(svcs.Offers, logg))
			r.Post("/{itemId}/buy", controllers.ItemBuy(svcs.Orders, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", controllers.OffersListMine(svcs.Offers, logg))
			r.Get("/{offerId}", controllers.OfferGet(svcs.Offers, logg))
			r.Post("/{offerId}/counter", controllers.OfferCounter(svcs.Offers, logg))
			r.Post("/{offerId}/accept", controllers.OfferAccept(svcs.Offers, logg))
			r.Post("/{offerId}/reject", controllers.OfferReject(svcs.Offers, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersListMine(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Get("/{orderId}/history", controllers.OrderHistory(svcs.Orders, logg))
			r.Post("/{orderId}/pay/initialize", controllers.PaymentInitialize(svcs.Payments, logg))
			r.Post("/{orderId}/pay/verify", controllers.PaymentVerify(svcs.Payments, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
			r.Post("/{orderId}/confirm-receipt", controllers.OrderConfirmReceipt(svcs.Orders, logg))
			r.Post("/{orderId}/dispute", controllers.OrderDispute(svcs.Orders, logg))
			r.Post("/{orderId}/claim-payout", controllers.OrderClaimPayout(svcs.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})

		r.Get("/me/credits", controllers.MyCreditLedger(svcs.Credits, logg))

		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, "agent", "admin"))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/queue", controllers.AgentOrderQueue(svcs.Orders, logg))
				r.Get("/assigned", controllers.AgentAssignedOrders(svcs.Orders, logg))
				r.Post("/{orderId}/accept", controllers.AgentAcceptOrder(svcs.Orders, logg))
				r.Post("/{orderId}/report", controllers.AgentFileReport(svcs.Inspections, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Post("/staff", controllers.AdminRegisterStaff(svcs.Auth, logg))
			r.Post("/users/{userId}/credits", controllers.AdminGrantCredits(svcs.Credits, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Post("/{orderId}/status", controllers.AdminAdvanceOrder(svcs.Orders, logg))
				r.Post("/{orderId}/resolve-dispute", controllers.AdminResolveDispute(svcs.Orders, logg))
				r.Post("/{orderId}/payout", controllers.OrderClaimPayout(svcs.Orders, logg))
			})
			r.Route("/inspections", func(r chi.Router) {
				r.Get("/{reportId}", controllers.InspectionGet(svcs.Inspections, logg))
				r.Post("/{reportId}/review", controllers.AdminReviewInspection(svcs.Inspections, logg))
			})
		})
	})

	return r
}
