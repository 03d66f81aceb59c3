package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/commissions-backend/internal/config"
	"github.com/ignatzorin/commissions-backend/internal/http/handlers"
	"github.com/ignatzorin/commissions-backend/internal/http/middleware"
	lifecycleHandler "github.com/ignatzorin/commissions-backend/internal/interface/http/handler"
)

// Handlers собирает все хэндлеры HTTP слоя.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Payment      *handlers.PaymentHandler
	Review       *handlers.ReviewHandler
	Notification *handlers.NotificationHandler
	Health       *handlers.HealthHandler
	WS           *handlers.WSHandler

	// Жизненный цикл заявки
	WorkRequest  *lifecycleHandler.WorkRequestHandler
	Application  *lifecycleHandler.ApplicationHandler
	Delivery     *lifecycleHandler.DeliveryHandler
	Cancellation *lifecycleHandler.CancellationHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessTokenParser) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	// Токен передаётся в query, AuthMiddleware здесь не подходит.
	api.GET("/ws", h.WS.Handle)
	api.GET("/profiles/:id/reviews", middleware.UUIDValidator("id"), h.Review.ListUserReviews)

	// Денежные операции и загрузки ограничены мягче, чем вход.
	actionLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit*6, cfg.RateLimitPeriod)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/auth/logout", h.Auth.Logout)

		workRequests := protected.Group("/work-requests")
		{
			workRequests.POST("", h.WorkRequest.Create)
			workRequests.GET("", h.WorkRequest.ListOpen)
			workRequests.GET("/my", h.WorkRequest.ListMine)
			workRequests.GET("/:id", middleware.UUIDValidator("id"), h.WorkRequest.Get)
			workRequests.GET("/:id/history", middleware.UUIDValidator("id"), h.WorkRequest.History)
			workRequests.POST("/:id/pay", actionLimit, middleware.UUIDValidator("id"), h.WorkRequest.Pay)
			workRequests.GET("/:id/escrow", middleware.UUIDValidator("id"), h.Payment.GetEscrow)

			workRequests.POST("/:id/applications", middleware.UUIDValidator("id"), h.Application.Submit)
			workRequests.GET("/:id/applications", middleware.UUIDValidator("id"), h.Application.List)
			workRequests.POST("/:id/applications/:applicationId/accept", middleware.UUIDValidator("id", "applicationId"), h.Application.Accept)

			workRequests.POST("/:id/deliveries", middleware.UUIDValidator("id"), h.Delivery.Submit)
			workRequests.POST("/:id/deliveries/upload", actionLimit, middleware.UUIDValidator("id"), h.Delivery.Upload)
			workRequests.GET("/:id/deliveries", middleware.UUIDValidator("id"), h.Delivery.List)

			workRequests.POST("/:id/cancellations", middleware.UUIDValidator("id"), h.Cancellation.Propose)
			workRequests.GET("/:id/cancellations", middleware.UUIDValidator("id"), h.Cancellation.List)

			workRequests.POST("/:id/reviews", middleware.UUIDValidator("id"), h.Review.CreateReview)
			workRequests.GET("/:id/can-review", middleware.UUIDValidator("id"), h.Review.CanLeaveReview)
		}

		protected.GET("/applications/my", h.Application.ListMine)
		protected.POST("/deliveries/:deliveryId/review", middleware.UUIDValidator("deliveryId"), h.Delivery.Review)
		protected.POST("/cancellations/:cancellationId/respond", middleware.UUIDValidator("cancellationId"), h.Cancellation.Respond)

		payments := protected.Group("/payments")
		{
			payments.POST("/deposit", actionLimit, h.Payment.Deposit)
			payments.GET("/balance", h.Payment.GetBalance)
			payments.GET("/earnings", h.Payment.GetEarnings)
			payments.GET("/transactions", h.Payment.ListTransactions)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notification.ListNotifications)
			notifications.GET("/unread/count", h.Notification.CountUnread)
			notifications.PUT("/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkAsRead)
		}
	}

	return r
}
