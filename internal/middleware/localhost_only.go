package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly restricts access to localhost or whitelisted IPs/CIDRs
type LocalhostOnly struct {
	logger     *logrus.Logger
	allowedIPs []string
}

// NewLocalhostOnly creates the IP restriction middleware
func NewLocalhostOnly(logger *logrus.Logger, allowedIPs []string) *LocalhostOnly {
	return &LocalhostOnly{
		logger:     logger,
		allowedIPs: allowedIPs,
	}
}

// Restrict rejects requests from outside the whitelist
func (l *LocalhostOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		remoteIP, _, _ := net.SplitHostPort(c.Request.RemoteAddr)

		if !l.isAllowedIP(clientIP) {
			// A misconfigured proxy chain can make ClientIP differ from
			// the direct peer; a loopback peer is always a local caller.
			if remoteIP == clientIP || !isLocalhost(remoteIP) {
				l.logger.WithFields(logrus.Fields{
					"client_ip":  clientIP,
					"remote_ip":  remoteIP,
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"user_agent": c.GetHeader("User-Agent"),
				}).Warn("Reject non-whitelisted access to sensitive API")

				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"success": false,
					"error":   "This API is only accessible from allowed IP addresses",
					"code":    "IP_NOT_ALLOWED",
				})
				return
			}
		}

		c.Next()
	}
}

// isLocalhost checks if IP is a loopback address
func isLocalhost(ip string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return ip == "localhost" || ip == "::1"
	}
	return parsedIP.IsLoopback()
}

// isAllowedIP checks the whitelist, supporting exact IPs and CIDR ranges
func (l *LocalhostOnly) isAllowedIP(ip string) bool {
	if isLocalhost(ip) {
		return true
	}

	if len(l.allowedIPs) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		for _, allowed := range l.allowedIPs {
			if ip == allowed {
				return true
			}
		}
		return false
	}

	for _, allowed := range l.allowedIPs {
		allowed = strings.TrimSpace(allowed)

		if strings.Contains(allowed, "/") {
			_, ipNet, err := net.ParseCIDR(allowed)
			if err != nil {
				l.logger.WithFields(logrus.Fields{
					"allowed": allowed,
					"error":   err.Error(),
				}).Warn("Invalid CIDR in allowedIPs")
				continue
			}
			if ipNet.Contains(parsedIP) {
				return true
			}
		} else {
			allowedIP := net.ParseIP(allowed)
			if allowedIP != nil && allowedIP.Equal(parsedIP) {
				return true
			}
		}
	}

	return false
}
