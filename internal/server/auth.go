package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// APIKeyHeader: HTTP header carrying the operator API key
	APIKeyHeader = "X-API-Key" //nolint:gosec // G101: header name, not a credential
)

// APIKeyAuthMiddleware: returns middleware validating the X-API-Key header.
// An empty apiKey disables authentication and admits every request (for
// local development).
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		providedKey := c.GetHeader(APIKeyHeader)
		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required",
			})
			return
		}

		// Constant-time comparison to resist timing attacks.
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

// NoRouteAuthHandler: validates the API key on unregistered paths. Missing
// key yields 401, a wrong key 403, and a valid key still 404 since the path
// does not exist. Keeps crawlers probing the root from mapping the server.
func NoRouteAuthHandler(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "endpoint not found",
			})
			return
		}

		providedKey := c.GetHeader(APIKeyHeader)
		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "invalid API key",
			})
			return
		}

		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "endpoint not found",
		})
	}
}
