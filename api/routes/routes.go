package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pulsecrm/pulse-crm-backend/internal/config"
	"github.com/pulsecrm/pulse-crm-backend/internal/handlers"
	"github.com/pulsecrm/pulse-crm-backend/internal/middleware"
	"github.com/pulsecrm/pulse-crm-backend/pkg/jwt"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Customer *handlers.CustomerHandler
	Segment  *handlers.SegmentHandler
	Campaign *handlers.CampaignHandler
	Webhook  *handlers.WebhookHandler
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, tokens *jwt.TokenService, h Handlers, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Add middleware
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))

	// Public routes
	public := router.Group("/api/v1")
	{
		// Health check
		public.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})

		// Auth routes
		auth := public.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// Vendor callbacks authenticate out of band (shared secret at the
		// vendor), not with admin sessions.
		webhooks := public.Group("/webhooks")
		{
			webhooks.POST("/delivery-receipt", h.Webhook.DeliveryReceipt)
			webhooks.POST("/event-callback", h.Webhook.EventCallback)
		}
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(tokens))
	{
		// Customer routes
		customers := protected.Group("/customers")
		{
			customers.GET("", h.Customer.GetAllCustomers)
			customers.GET("/count", h.Customer.GetCustomerCount)
			customers.GET("/:id", h.Customer.GetCustomerByID)
			customers.POST("", h.Customer.CreateCustomer)
			customers.POST("/bulk", h.Customer.BulkCreateCustomers)
			customers.PUT("/:id", h.Customer.UpdateCustomer)
			customers.DELETE("/:id", h.Customer.DeleteCustomer)
		}

		// Segment routes
		segments := protected.Group("/segments")
		{
			segments.GET("", h.Segment.GetAllSegments)
			segments.GET("/:id", h.Segment.GetSegmentByID)
			segments.POST("", h.Segment.CreateSegment)
			segments.POST("/preview", h.Segment.PreviewAudience)
			segments.POST("/:id/refresh", h.Segment.RefreshSegment)
			segments.PUT("/:id", h.Segment.UpdateSegment)
			segments.DELETE("/:id", h.Segment.DeleteSegment)
		}

		// Campaign routes
		campaigns := protected.Group("/campaigns")
		{
			campaigns.GET("", h.Campaign.GetAllCampaigns)
			campaigns.GET("/count", h.Campaign.GetCampaignCount)
			campaigns.GET("/:id", h.Campaign.GetCampaignByID)
			campaigns.GET("/:id/logs", h.Campaign.GetCampaignLogs)
			campaigns.POST("", h.Campaign.CreateCampaign)
			campaigns.POST("/:id/activate", h.Campaign.ActivateCampaign)
		}
	}

	return router
}
