package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wish-backend/internal/shared/auth"
	"wish-backend/internal/shared/server/respond"
)

const (
	userIDKey = "userId"
	openIDKey = "openId"
)

// Auth validates JWTs issued at login and stores identity in context.
// The login exchange itself is the only route that passes through anonymous.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		path := c.Request.URL.Path
		switch {
		case strings.HasPrefix(path, "/api/v1/auth/wechat/"),
			path == "/api/v1/health",
			path == "/api/v1/metrics":
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := auth.VerifyJWT(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Sub)
		if claims.OpenID != "" {
			c.Set(openIDKey, claims.OpenID)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// OpenIDFromContext fetches the platform openid set by the auth middleware.
func OpenIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(openIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
