package handlers

import (
	"net/http"
	"strconv"

	"bridge-backend/internal/dto"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DepositHandler serves deposit addresses and deposit history
type DepositHandler struct {
	addressRegistry *services.AddressRegistryService
	depositRepo     repository.DepositRepository
	logger          *logrus.Logger
}

// NewDepositHandler creates a new DepositHandler
func NewDepositHandler(addressRegistry *services.AddressRegistryService, depositRepo repository.DepositRepository, logger *logrus.Logger) *DepositHandler {
	return &DepositHandler{
		addressRegistry: addressRegistry,
		depositRepo:     depositRepo,
		logger:          logger,
	}
}

// CreateDepositAddressHandler issues (or returns) the caller's deposit
// address on a network
// POST /api/deposit-address
func (h *DepositHandler) CreateDepositAddressHandler(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.CreateDepositAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"message": err.Error(),
		})
		return
	}

	addr, err := h.addressRegistry.GetOrCreateAddress(c.Request.Context(), userID, req.Network)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"network": req.Network,
			"error":   err.Error(),
		}).Error("Failed to issue deposit address")

		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": addr.Address,
		"network": addr.Network,
	})
}

// ListDepositAddressesHandler returns the caller's active addresses keyed
// by network
// GET /api/deposit-addresses
func (h *DepositHandler) ListDepositAddressesHandler(c *gin.Context) {
	userID := c.GetString("user_id")

	addresses, err := h.addressRegistry.ListAddresses(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to list deposit addresses")

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list deposit addresses",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"addresses": addresses,
	})
}

// ListDepositsHandler lists the caller's deposits with filters
// GET /api/deposits?status=&network=&page=&size=
func (h *DepositHandler) ListDepositsHandler(c *gin.Context) {
	userID := c.GetString("user_id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	deposits, total, err := h.depositRepo.Find(c.Request.Context(), repository.DepositQuery{
		UserID:   userID,
		Network:  c.Query("network"),
		Status:   models.DepositStatus(c.Query("status")),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to list deposits")

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list deposits",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": dto.PaginatedResponse{
			Items:    deposits,
			Total:    total,
			Page:     page,
			PageSize: size,
		},
	})
}

// GetDepositHandler returns one of the caller's deposits
// GET /api/deposits/:id
func (h *DepositHandler) GetDepositHandler(c *gin.Context) {
	userID := c.GetString("user_id")
	depositID := c.Param("id")

	deposit, err := h.depositRepo.GetByID(c.Request.Context(), depositID)
	if err != nil || deposit.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Deposit not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deposit": deposit,
	})
}
