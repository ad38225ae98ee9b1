// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gigmarket/internal/http/handlers"
	"gigmarket/internal/http/middleware"
	"gigmarket/internal/infra"
)

type RouterDeps struct {
	Verifier      infra.TokenVerifier
	Logger        logrus.FieldLogger
	Orders        handlers.OrderService
	Downloads     handlers.DownloadSigner
	Reviews       handlers.ReviewService
	Ratings       handlers.RatingService
	Notifications handlers.NotificationService
	Webhooks      handlers.WebhookProcessor
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	paymentHandler := handlers.NewPaymentHandler(deps.Webhooks)
	r.POST("/api/payments/webhook", paymentHandler.Webhook)

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Downloads)
	api.GET("/orders", orderHandler.List)
	api.GET("/orders/:id", orderHandler.Get)
	api.GET("/orders/:id/events", orderHandler.Events)
	api.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
	api.POST("/orders/:id/delivery", orderHandler.SubmitDelivery)
	api.GET("/orders/:id/delivery/:fileId", orderHandler.DownloadFile)

	reviewHandler := handlers.NewReviewHandler(deps.Reviews)
	api.POST("/orders/:id/reviews", reviewHandler.Submit)
	api.PATCH("/reviews/:id", reviewHandler.Update)
	api.DELETE("/reviews/:id", reviewHandler.Delete)
	api.GET("/users/:id/reviews", reviewHandler.ListForUser)

	ratingHandler := handlers.NewRatingHandler(deps.Ratings)
	api.GET("/users/:id/rating", ratingHandler.User)
	api.POST("/users/:id/rating/recompute", ratingHandler.Recompute)
	api.GET("/gigs/:id/rating", ratingHandler.Gig)

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
	api.GET("/notifications", notificationHandler.List)
	api.POST("/notifications/:id/read", notificationHandler.MarkRead)

	return r
}
