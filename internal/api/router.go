package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(handler *Handler, ginMode string) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())

	// Health check (public)
	router.GET("/health", handler.Health)

	// API v1 routes (requires Bearer auth)
	v1 := router.Group("/api/v1")
	v1.Use(ServiceAuthMiddleware())
	{
		events := v1.Group("/events")
		{
			events.POST("/:event_id/registrations", handler.CreateRegistration)
			events.DELETE("/:event_id/registrations/:member_id", handler.DeleteRegistration)
		}

		members := v1.Group("/members")
		{
			members.POST("/:member_id/subscription", handler.CreateSubscription)
			members.DELETE("/:member_id/subscription", handler.DeleteSubscription)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("/collection", handler.CollectionReport)
			reports.GET("/ledger", handler.LedgerReport)
		}
	}

	// Webhook endpoint (public, validates x-signature)
	router.POST("/webhooks/payments", handler.HandleWebhook)

	return router
}
