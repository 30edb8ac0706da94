package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"shipnotify/internal/common"
	"shipnotify/internal/infra/metrics"

	"github.com/gin-gonic/gin"
)

// APIKey guards the service-to-service routes (publish, alerts, shipment
// events, session revoke) with the X-API-Key header. End users use JWT.
func APIKey(validKeys []string) gin.HandlerFunc {
	digests := make([][sha256.Size]byte, 0, len(validKeys))
	for _, k := range validKeys {
		if k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			metrics.AuthRejected.WithLabelValues("api_key").Inc()
			common.Error(c, http.StatusUnauthorized, "missing X-API-Key header")
			c.Abort()
			return
		}

		if !matchesAny(sha256.Sum256([]byte(apiKey)), digests) {
			metrics.AuthRejected.WithLabelValues("api_key").Inc()
			common.Error(c, http.StatusUnauthorized, "invalid API key")
			c.Abort()
			return
		}

		c.Next()
	}
}

// matchesAny compares fixed-size digests so timing reveals neither the key nor its length.
func matchesAny(digest [sha256.Size]byte, valid [][sha256.Size]byte) bool {
	found := 0
	for i := range valid {
		found |= subtle.ConstantTimeCompare(digest[:], valid[i][:])
	}
	return found == 1
}
