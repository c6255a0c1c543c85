package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/api/middleware"
	"example.com/mci/services/delivery/internal/fieldmap"
	"example.com/mci/services/delivery/internal/model"
	"example.com/mci/services/delivery/internal/repository"
	"example.com/mci/services/delivery/internal/search"
	syncpkg "example.com/mci/services/delivery/internal/sync"
)

// DeliveryHandler handles delivery-related requests
type DeliveryHandler struct {
	orchestrator *syncpkg.Orchestrator
	search       *search.ElasticClient
	log          *logrus.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler instance
func NewDeliveryHandler(orchestrator *syncpkg.Orchestrator, searchClient *search.ElasticClient, log *logrus.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		orchestrator: orchestrator,
		search:       searchClient,
		log:          log,
	}
}

// GetDeliveries returns the partitioned active/history view
func (h *DeliveryHandler) GetDeliveries(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	snapshot := h.orchestrator.Load(c.Request.Context(), ownerID)
	c.JSON(http.StatusOK, snapshot)
}

// CreateDelivery handles booking a new delivery
func (h *DeliveryHandler) CreateDelivery(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var doc fieldmap.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		h.log.WithError(err).Warn("Invalid delivery format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid delivery format"})
		return
	}

	created, err := h.orchestrator.Add(c.Request.Context(), ownerID, doc)
	if err != nil {
		h.writeError(c, err, "Failed to create delivery")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateDelivery handles a partial update of a delivery
func (h *DeliveryHandler) UpdateDelivery(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var doc fieldmap.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		h.log.WithError(err).Warn("Invalid delivery format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid delivery format"})
		return
	}

	updated, err := h.orchestrator.Update(c.Request.Context(), ownerID, c.Param("id"), doc)
	if err != nil {
		h.writeError(c, err, "Failed to update delivery")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// UpdateDeliveryStatus handles a status transition
func (h *DeliveryHandler) UpdateDeliveryStatus(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	updated, err := h.orchestrator.ApplyStatus(c.Request.Context(), ownerID, c.Param("id"), body.Status)
	if err != nil {
		if updated != nil {
			// Applied locally, queued for replay.
			c.JSON(http.StatusAccepted, gin.H{"delivery": updated, "queued": true})
			return
		}
		h.writeError(c, err, "Failed to update delivery status")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteDelivery handles delivery removal
func (h *DeliveryHandler) DeleteDelivery(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	if err := h.orchestrator.Remove(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		h.writeError(c, err, "Failed to delete delivery")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ImportDeliveries handles a batch import
func (h *DeliveryHandler) ImportDeliveries(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var docs []fieldmap.Document
	if err := c.ShouldBindJSON(&docs); err != nil {
		h.log.WithError(err).Warn("Invalid import payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid import payload"})
		return
	}

	result, err := h.orchestrator.ImportMany(c.Request.Context(), ownerID, docs)
	if err != nil {
		if errors.Is(err, syncpkg.ErrImportInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "An import is already running"})
			return
		}
		h.writeError(c, err, "Failed to import deliveries")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReplayPending triggers an immediate replay of queued writes
func (h *DeliveryHandler) ReplayPending(c *gin.Context) {
	if err := h.orchestrator.ReplayPending(c.Request.Context()); err != nil {
		h.log.WithError(err).Warn("Replay stopped before the queue drained")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Replay stopped, remote store still unreachable",
			"pending": h.orchestrator.Queue().Len(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": h.orchestrator.Queue().Len()})
}

// GetPendingOperations returns the queued writes awaiting replay
func (h *DeliveryHandler) GetPendingOperations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pending": h.orchestrator.Queue().Pending(),
		"count":   h.orchestrator.Queue().Len(),
	})
}

// SearchHistory runs a full-text search over completed deliveries
func (h *DeliveryHandler) SearchHistory(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter q is required"})
		return
	}

	size := 50
	if sizeStr := c.Query("size"); sizeStr != "" {
		if parsed, err := strconv.Atoi(sizeStr); err == nil {
			size = parsed
		}
	}

	docs, err := h.search.SearchHistory(c.Request.Context(), term, size)
	if err != nil {
		h.log.WithError(err).Error("History search failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": docs})
}

// writeError maps domain errors onto HTTP status codes. Errors outside the
// taxonomy are treated as remote-store connectivity failures: the write has
// been queued, so the client gets a retryable 503.
func (h *DeliveryHandler) writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, syncpkg.ErrMalformedRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Delivery not found"})
	case errors.Is(err, repository.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).Error(message)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  message,
			"queued": true,
		})
	}
}
