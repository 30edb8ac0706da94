package middleware

import (
	"net/http"
	"strings"

	"shipnotify/internal/auth"
	"shipnotify/internal/common"
	"shipnotify/internal/infra/metrics"

	"github.com/gin-gonic/gin"
)

// JWT returns middleware that authenticates end users by bearer token and
// stores the user ID under auth.ContextUserID.
func JWT(manager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			metrics.AuthRejected.WithLabelValues("jwt").Inc()
			common.Error(c, http.StatusUnauthorized, "missing or malformed Authorization header")
			c.Abort()
			return
		}

		claims, err := manager.ValidateToken(token)
		if err != nil {
			metrics.AuthRejected.WithLabelValues("jwt").Inc()
			common.Error(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(auth.ContextUserID, claims.UserID())
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
