package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/api/middleware"
	"example.com/mci/services/delivery/internal/fieldmap"
	"example.com/mci/services/delivery/internal/repository"
	syncpkg "example.com/mci/services/delivery/internal/sync"
)

// CustomerHandler handles customer-related requests
type CustomerHandler struct {
	orchestrator *syncpkg.Orchestrator
	log          *logrus.Logger
}

// NewCustomerHandler creates a new CustomerHandler instance
func NewCustomerHandler(orchestrator *syncpkg.Orchestrator, log *logrus.Logger) *CustomerHandler {
	return &CustomerHandler{
		orchestrator: orchestrator,
		log:          log,
	}
}

// ListCustomers returns the owner's customer directory
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	customers := h.orchestrator.LoadCustomers(c.Request.Context(), ownerID)
	c.JSON(http.StatusOK, customers)
}

// CreateCustomer handles adding a customer
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var doc fieldmap.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		h.log.WithError(err).Warn("Invalid customer format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer format"})
		return
	}

	created, err := h.orchestrator.AddCustomer(c.Request.Context(), ownerID, doc)
	if err != nil {
		h.writeError(c, err, "Failed to create customer")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateCustomer handles a partial customer update
func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var doc fieldmap.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		h.log.WithError(err).Warn("Invalid customer format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer format"})
		return
	}

	updated, err := h.orchestrator.UpdateCustomer(c.Request.Context(), ownerID, c.Param("id"), doc)
	if err != nil {
		h.writeError(c, err, "Failed to update customer")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteCustomer handles customer removal
func (h *CustomerHandler) DeleteCustomer(c *gin.Context) {
	ownerID, err := middleware.GetOwnerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	if err := h.orchestrator.RemoveCustomer(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		h.writeError(c, err, "Failed to delete customer")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *CustomerHandler) writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, syncpkg.ErrMalformedRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
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
