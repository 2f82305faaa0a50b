package handlers

import (
	"net/http"

	"bridge-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler upgrades authenticated clients to the push stream
type WebSocketHandler struct {
	push   *services.WebSocketPushService
	logger *logrus.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(push *services.WebSocketPushService, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		push:   push,
		logger: logger,
	}
}

// HandleWebSocket upgrades the connection
// GET /api/ws?token=<jwt>
// Browsers cannot set headers on WebSocket requests, so the token rides in
// the query string; the Authorization header works too.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	if userID == "" {
		token := c.Query("token")
		if token != "" {
			claims, err := ValidateJWTToken(token)
			if err == nil {
				userID = claims.UserID
			}
		}
	}

	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Authentication required",
			"code":    "MISSING_TOKEN",
		})
		return
	}

	h.logger.WithField("user_id", userID).Info("WebSocket connection requested")
	h.push.HandleWebSocket(c.Writer, c.Request, userID)
}
