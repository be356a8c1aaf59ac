package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-orderflow/api/controllers"
	ordercontrollers "github.com/angelmondragon/packfinderz-orderflow/api/controllers/orders"
	"github.com/angelmondragon/packfinderz-orderflow/api/middleware"
	"github.com/angelmondragon/packfinderz-orderflow/internal/notifications"
	"github.com/angelmondragon/packfinderz-orderflow/internal/orders"
	"github.com/angelmondragon/packfinderz-orderflow/internal/reviews"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-orderflow/pkg/redis"
)

// RedisStore is the subset of the Redis client the HTTP surface needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
	RateLimitKey(policy, dimension, value string) string
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient RedisStore,
	ordersSvc orders.Service,
	reviewTracker reviews.Tracker,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	actionPolicy := middleware.NewRateLimitPolicy(
		"order-actions",
		time.Minute,
		cfg.App.ActionRateLimit,
		cfg.App.ActionRateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "database", Ping: dbP.Ping},
			controllers.ReadinessCheck{Name: "redis", Ping: redisClient.Ping},
		))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(actionPolicy, redisClient, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.With(middleware.RequireRole(logg, enums.ActorRoleAdmin)).
			Post("/orders", ordercontrollers.Create(ordersSvc, logg))

		r.Route("/order/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(ordersSvc, logg))
			r.Put("/accept", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionAccept, logg))
			r.Put("/reject", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionReject, logg))
			r.Put("/ship", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionShip, logg))
			r.Put("/awaiting-pickup", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionMarkAwaitingPickup, logg))
			r.Put("/delivered", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionDeliver, logg))
			r.Put("/complete", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionComplete, logg))
			r.Put("/cancel", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionCancel, logg))
			r.Put("/refund", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionRequestRefund, logg))
			r.Put("/dispute", ordercontrollers.ApplyAction(ordersSvc, enums.OrderActionLodgeDispute, logg))
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleBuyer))
			r.Get("/pending", ordercontrollers.PendingReviews(reviewTracker, logg))
			r.Put("/{lineItemId}", ordercontrollers.RecordReview(ordersSvc, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
			r.Put("/refunds/{refundId}/approve", ordercontrollers.ResolveRefund(ordersSvc, enums.RefundStatusApproved, logg))
			r.Put("/refunds/{refundId}/reject", ordercontrollers.ResolveRefund(ordersSvc, enums.RefundStatusRejected, logg))
			r.Put("/disputes/{disputeId}/resolve", ordercontrollers.ResolveDispute(ordersSvc, logg))
			r.Put("/reviews/{lineItemId}/dismiss", ordercontrollers.DismissReview(reviewTracker, logg))
		})

		r.Route("/distributor", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleDistributor))
			r.Put("/refunds/{refundId}/approve", ordercontrollers.ResolveRefund(ordersSvc, enums.RefundStatusApproved, logg))
			r.Put("/refunds/{refundId}/reject", ordercontrollers.ResolveRefund(ordersSvc, enums.RefundStatusRejected, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
		})
	})

	return r
}
