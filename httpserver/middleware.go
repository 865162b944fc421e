package httpserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the shared secret on sandbox requests.
const APIKeyHeader = "X-Api-Key"

// apiKeyAuth checks the shared-secret header for the /v1/sandbox route
// group. Keys are compared as SHA-256 digests in constant time so length
// differences leak nothing.
func apiKeyAuth(key string) gin.HandlerFunc {
	expected := sha256.Sum256([]byte(key))
	return func(c *gin.Context) {
		got := sha256.Sum256([]byte(c.GetHeader(APIKeyHeader)))
		if subtle.ConstantTimeCompare(expected[:], got[:]) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Code:    CodeUnauthorized,
				Message: "Unauthorized",
				Data:    nil,
			})
			return
		}
		c.Next()
	}
}
