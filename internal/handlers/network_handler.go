package handlers

import (
	"net/http"

	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NetworkHandler serves public network health and supply endpoints
type NetworkHandler struct {
	statusRepo repository.NetworkStatusRepository
	ledger     *services.LedgerService
	logger     *logrus.Logger
}

// NewNetworkHandler creates a new NetworkHandler
func NewNetworkHandler(statusRepo repository.NetworkStatusRepository, ledger *services.LedgerService, logger *logrus.Logger) *NetworkHandler {
	return &NetworkHandler{
		statusRepo: statusRepo,
		ledger:     ledger,
		logger:     logger,
	}
}

// NetworkStatusHandler reports per-network reachability
// GET /api/network-status
func (h *NetworkHandler) NetworkStatusHandler(c *gin.Context) {
	statuses, err := h.statusRepo.List(c.Request.Context())
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list network statuses")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load network status",
		})
		return
	}

	networks := make([]gin.H, 0, len(statuses))
	for _, s := range statuses {
		entry := gin.H{
			"network":     s.Network,
			"online":      s.Online,
			"blockHeight": s.BlockHeight,
			"lastChecked": s.LastChecked,
		}
		if s.ErrorMsg != "" {
			entry["error"] = s.ErrorMsg
		}
		networks = append(networks, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"networks": networks,
	})
}

// WrappedAssetsHandler reports the supply ledger per wrapped symbol
// GET /api/wrapped-assets
func (h *NetworkHandler) WrappedAssetsHandler(c *gin.Context) {
	assets, err := h.ledger.List(c.Request.Context())
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list wrapped assets")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load wrapped assets",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"assets":  assets,
	})
}
