package handlers

import (
	"net/http"
	"strconv"

	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the operator endpoints: manual deposit confirmation,
// the incident queue and cross-user withdrawal listings.
type AdminHandler struct {
	settlement     *services.SettlementService
	incidentRepo   repository.IncidentRepository
	withdrawalRepo repository.WithdrawalRepository
	logger         *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(settlement *services.SettlementService, incidentRepo repository.IncidentRepository, withdrawalRepo repository.WithdrawalRepository, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		settlement:     settlement,
		incidentRepo:   incidentRepo,
		withdrawalRepo: withdrawalRepo,
		logger:         logger,
	}
}

// ConfirmDepositHandler force-confirms and settles a stuck deposit
// POST /api/admin/deposits/:id/confirm
func (h *AdminHandler) ConfirmDepositHandler(c *gin.Context) {
	depositID := c.Param("id")

	if err := h.settlement.ManualConfirm(c.Request.Context(), depositID); err != nil {
		h.logger.WithFields(logrus.Fields{
			"deposit_id": depositID,
			"error":      err.Error(),
		}).Warn("Manual deposit confirmation failed")

		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	h.logger.WithField("deposit_id", depositID).Info("Deposit manually confirmed")
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"depositId": depositID,
		"status":    models.DepositStatusConfirmed,
	})
}

// ListIncidentsHandler returns the open incident queue, oldest first
// GET /api/admin/incidents
func (h *AdminHandler) ListIncidentsHandler(c *gin.Context) {
	incidents, err := h.incidentRepo.ListUnresolved(c.Request.Context())
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list incidents")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load incidents",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"incidents": incidents,
	})
}

// ResolveIncidentHandler closes one incident
// POST /api/admin/incidents/:id/resolve
func (h *AdminHandler) ResolveIncidentHandler(c *gin.Context) {
	incidentID := c.Param("id")

	resolved, err := h.incidentRepo.Resolve(c.Request.Context(), incidentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to resolve incident",
		})
		return
	}
	if !resolved {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Incident not found or already resolved",
		})
		return
	}

	h.logger.WithField("incident_id", incidentID).Info("Incident resolved")
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"incidentId": incidentID,
	})
}

// ListWithdrawalsHandler lists withdrawals across all users
// GET /api/admin/withdrawals?status=&network=&page=&size=
func (h *AdminHandler) ListWithdrawalsHandler(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	withdrawals, total, err := h.withdrawalRepo.Find(c.Request.Context(), repository.WithdrawalQuery{
		Network:  c.Query("network"),
		Status:   models.WithdrawalStatus(c.Query("status")),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list withdrawals")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load withdrawals",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"withdrawals": withdrawals,
		"total":       total,
		"page":        page,
		"pageSize":    size,
	})
}
