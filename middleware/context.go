package middleware

import (
	"github.com/MrEthical07/lireddit"
	"github.com/gin-gonic/gin"
)

// RequestContext copies the client IP (as resolved by gin's trusted proxy
// settings) and the User-Agent header into the request context.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := lireddit.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = lireddit.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
