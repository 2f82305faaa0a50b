package middleware

import (
	"net/http"

	"bridge-backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
)

// AdminAuthMiddleware gates operator endpoints behind an IP whitelist and
// a TOTP code. No long-lived admin credential exists; every request
// carries a fresh code.
type AdminAuthMiddleware struct {
	logger    *logrus.Logger
	ipGuard   *LocalhostOnly
	adminConf *config.AdminConfig
}

// NewAdminAuthMiddleware creates the admin auth middleware
func NewAdminAuthMiddleware(logger *logrus.Logger, adminConf *config.AdminConfig) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		logger:    logger,
		ipGuard:   NewLocalhostOnly(logger, adminConf.AllowedIPs),
		adminConf: adminConf,
	}
}

// RequireAdminAuth checks the caller's IP and TOTP code
func (a *AdminAuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !a.ipGuard.isAllowedIP(clientIP) {
			a.logger.WithFields(logrus.Fields{
				"client_ip": clientIP,
				"path":      c.Request.URL.Path,
				"method":    c.Request.Method,
			}).Warn("Admin auth failed - IP not whitelisted")

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "This API is only accessible from allowed IP addresses",
				"code":    "IP_NOT_ALLOWED",
			})
			return
		}

		if a.adminConf.TOTPSecret == "" {
			a.logger.Warn("Admin auth failed - no TOTP secret configured")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Admin access is not configured",
				"code":    "ADMIN_NOT_CONFIGURED",
			})
			return
		}

		code := c.GetHeader("X-Admin-TOTP")
		if code == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Missing TOTP code",
				"message": "Provide the current code in the X-Admin-TOTP header",
				"code":    "MISSING_TOTP",
			})
			return
		}

		if !totp.Validate(code, a.adminConf.TOTPSecret) {
			a.logger.WithFields(logrus.Fields{
				"client_ip": clientIP,
				"path":      c.Request.URL.Path,
			}).Warn("Admin auth failed - invalid TOTP code")

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid TOTP code",
				"code":    "INVALID_TOTP",
			})
			return
		}

		a.logger.WithFields(logrus.Fields{
			"client_ip": clientIP,
			"path":      c.Request.URL.Path,
		}).Info("Admin access granted")

		c.Next()
	}
}
