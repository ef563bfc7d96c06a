package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/deepresearch/engine/pkg/config"
)

// bearerAuth gates research endpoints behind a shared-secret bearer token
// when cfg.Enabled. The secret comparison is constant-time (hashed first,
// so differing lengths don't leak via subtle.ConstantTimeCompare's
// early-return-free but length-sensitive behaviour) to avoid timing side
// channels on the shared secret.
func bearerAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || !cfg.Enabled {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !constantTimeEqual(token, cfg.SecretKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing or invalid bearer token"})
			return
		}

		c.Next()
	}
}

func constantTimeEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}
