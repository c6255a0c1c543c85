package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/api/handlers"
	"example.com/mci/services/delivery/api/middleware"
	"example.com/mci/services/delivery/internal/search"
	syncpkg "example.com/mci/services/delivery/internal/sync"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, orchestrator *syncpkg.Orchestrator, searchClient *search.ElasticClient, log *logrus.Logger) {
	// Health check and metrics
	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", handlers.Metrics)

	// API routes
	api := r.Group("/api/v1")
	api.Use(middleware.OwnerAuth())

	// Delivery routes
	deliveryHandler := handlers.NewDeliveryHandler(orchestrator, searchClient, log)
	deliveries := api.Group("/deliveries")
	{
		deliveries.GET("", deliveryHandler.GetDeliveries)
		deliveries.POST("", deliveryHandler.CreateDelivery)
		deliveries.PUT("/:id", deliveryHandler.UpdateDelivery)
		deliveries.PATCH("/:id/status", deliveryHandler.UpdateDeliveryStatus)
		deliveries.DELETE("/:id", deliveryHandler.DeleteDelivery)
		deliveries.POST("/import", deliveryHandler.ImportDeliveries)
	}

	// Pending-write queue
	syncRoutes := api.Group("/sync")
	{
		syncRoutes.GET("/pending", deliveryHandler.GetPendingOperations)
		syncRoutes.POST("/replay", deliveryHandler.ReplayPending)
	}

	// History search
	api.GET("/history/search", deliveryHandler.SearchHistory)

	// Customer routes
	customerHandler := handlers.NewCustomerHandler(orchestrator, log)
	customers := api.Group("/customers")
	{
		customers.GET("", customerHandler.ListCustomers)
		customers.POST("", customerHandler.CreateCustomer)
		customers.PUT("/:id", customerHandler.UpdateCustomer)
		customers.DELETE("/:id", customerHandler.DeleteCustomer)
	}
}
