package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"bridge-backend/internal/config"
	"bridge-backend/internal/handlers"
	"bridge-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware CORS middleware
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		var allowCredentials bool = true
		var maxAge int = 3600

		envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if envOrigins != "" {
			origins := strings.Split(envOrigins, ",")
			allowedOrigins = make([]string, 0, len(origins))
			for _, o := range origins {
				trimmed := strings.TrimSpace(o)
				if trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		} else {
			allowedOrigins = []string{"*"}
		}

		originAllowed := func() bool {
			if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
				return true
			}
			for _, allowedOrigin := range allowedOrigins {
				if strings.TrimSpace(allowedOrigin) == origin {
					return true
				}
			}
			return false
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			if originAllowed() {
				c.Header("Access-Control-Allow-Origin", origin)
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin":  origin,
					"allowed_origins": allowedOrigins,
					"path":            c.Request.URL.Path,
					"method":          c.Request.Method,
					"remote_addr":     c.ClientIP(),
				}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Cache-Control, Accept, X-Admin-TOTP")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// Handlers bundles everything the router mounts
type Handlers struct {
	Deposit    *handlers.DepositHandler
	Withdrawal *handlers.WithdrawalHandler
	Network    *handlers.NetworkHandler
	Admin      *handlers.AdminHandler
	WebSocket  *handlers.WebSocketHandler
}

// SetupRouter wires all routes
func SetupRouter(h *Handlers) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware())

	logger := logrus.New()

	adminConf := &config.AdminConfig{}
	if config.AppConfig != nil {
		adminConf = &config.AppConfig.Admin
		if len(adminConf.AllowedIPs) > 0 {
			logger.WithFields(logrus.Fields{
				"allowed_ips": adminConf.AllowedIPs,
				"count":       len(adminConf.AllowedIPs),
			}).Info("Admin API IP whitelist configured")
		} else {
			logger.Info("No admin.allowedIPs configured, using localhost-only mode")
		}
	} else {
		logger.Warn("AppConfig is nil, using localhost-only mode")
	}

	authMiddleware := middleware.NewAuthMiddleware(logger)
	adminAuth := middleware.NewAdminAuthMiddleware(logger, adminConf)

	// ============ Probes ============
	r.GET("/ping", handlers.PingHandler)
	r.GET("/health", handlers.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Public API ============
	api := r.Group("/api")
	{
		api.GET("/network-status", h.Network.NetworkStatusHandler)
		api.GET("/wrapped-assets", h.Network.WrappedAssetsHandler)

		// Token may arrive via header or query string.
		api.GET("/ws", authMiddleware.OptionalAuth(), h.WebSocket.HandleWebSocket)
	}

	// ============ User API (JWT) ============
	user := r.Group("/api", authMiddleware.RequireAuth())
	{
		user.POST("/deposit-address", h.Deposit.CreateDepositAddressHandler)
		user.GET("/deposit-addresses", h.Deposit.ListDepositAddressesHandler)
		user.GET("/deposits", h.Deposit.ListDepositsHandler)
		user.GET("/deposits/:id", h.Deposit.GetDepositHandler)

		user.POST("/withdrawals", h.Withdrawal.CreateWithdrawalHandler)
		user.POST("/withdrawals/:id/cancel", h.Withdrawal.CancelWithdrawalHandler)
		user.GET("/withdrawals", h.Withdrawal.ListWithdrawalsHandler)
	}

	// ============ Admin API (IP whitelist + TOTP) ============
	admin := r.Group("/api/admin", adminAuth.RequireAdminAuth())
	{
		admin.POST("/deposits/:id/confirm", h.Admin.ConfirmDepositHandler)
		admin.GET("/incidents", h.Admin.ListIncidentsHandler)
		admin.POST("/incidents/:id/resolve", h.Admin.ResolveIncidentHandler)
		admin.GET("/withdrawals", h.Admin.ListWithdrawalsHandler)
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path

		if len(path) >= 4 && path[:4] != "/api" {
			c.JSON(http.StatusNotFound, gin.H{
				"message":    "Endpoint not found",
				"path":       path,
				"suggestion": "Check /api endpoints for available APIs",
			})
			return
		}

		c.JSON(http.StatusNotFound, gin.H{
			"message":    "API endpoint not found",
			"path":       path,
			"suggestion": "Check documentation for available /api endpoints",
		})
	})

	return r
}
