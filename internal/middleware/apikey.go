package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ordbokapi/notify/internal/pkg/response"
)

// APIKey guards publishing endpoints with a shared secret carried in the
// Authorization header, with or without a Bearer prefix. An empty configured
// key rejects everything.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			response.Unauthorized(c)
			return
		}

		provided := strings.TrimSpace(c.GetHeader("Authorization"))
		provided = strings.TrimPrefix(provided, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}
