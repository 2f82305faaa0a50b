package handlers

import (
	"net/http"
	"strconv"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WithdrawalHandler serves the withdrawal intake and history endpoints
type WithdrawalHandler struct {
	settlement     *services.SettlementService
	withdrawalRepo repository.WithdrawalRepository
	logger         *logrus.Logger
}

// NewWithdrawalHandler creates a new WithdrawalHandler
func NewWithdrawalHandler(settlement *services.SettlementService, withdrawalRepo repository.WithdrawalRepository, logger *logrus.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		settlement:     settlement,
		withdrawalRepo: withdrawalRepo,
		logger:         logger,
	}
}

// CreateWithdrawalHandler accepts a withdrawal request
// POST /api/withdrawals
func (h *WithdrawalHandler) CreateWithdrawalHandler(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"message": err.Error(),
		})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid amount",
		})
		return
	}

	withdrawal, err := h.settlement.Withdraw(c.Request.Context(), services.WithdrawRequest{
		UserID:    userID,
		Network:   req.Network,
		Symbol:    req.Symbol,
		Amount:    amount,
		ToAddress: req.ToAddress,
	})
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"network": req.Network,
			"amount":  req.Amount,
			"error":   err.Error(),
		}).Warn("Withdrawal rejected")

		status := http.StatusBadRequest
		switch apperrors.Classify(err) {
		case apperrors.KindInsufficientBalance:
			status = http.StatusUnprocessableEntity
		case apperrors.KindTransient:
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"withdrawalId": withdrawal.ID,
		"status":       withdrawal.Status,
	})
}

// CancelWithdrawalHandler cancels a still-pending withdrawal
// POST /api/withdrawals/:id/cancel
func (h *WithdrawalHandler) CancelWithdrawalHandler(c *gin.Context) {
	userID := c.GetString("user_id")
	withdrawalID := c.Param("id")

	withdrawal, err := h.settlement.Cancel(c.Request.Context(), userID, withdrawalID)
	if err != nil {
		status := http.StatusBadRequest
		if apperrors.Classify(err) == apperrors.KindTransient {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  withdrawal.Status,
	})
}

// ListWithdrawalsHandler lists the caller's withdrawals
// GET /api/withdrawals?status=&page=&size=
func (h *WithdrawalHandler) ListWithdrawalsHandler(c *gin.Context) {
	userID := c.GetString("user_id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	withdrawals, total, err := h.withdrawalRepo.Find(c.Request.Context(), repository.WithdrawalQuery{
		UserID:   userID,
		Network:  c.Query("network"),
		Status:   models.WithdrawalStatus(c.Query("status")),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to list withdrawals")

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list withdrawals",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": dto.PaginatedResponse{
			Items:    withdrawals,
			Total:    total,
			Page:     page,
			PageSize: size,
		},
	})
}
