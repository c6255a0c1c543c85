package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/mci/services/delivery/internal/metrics"
)

// HealthCheck handles health check requests
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Delivery Tracker",
	})
}

// Metrics returns a snapshot of the internal metrics collector
func Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetMetricsCollector().GetSnapshot())
}
