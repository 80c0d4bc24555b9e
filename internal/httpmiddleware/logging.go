package httpmiddleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"classportal/internal/logger"
)

// UserIDKey is the gin context key carrying the authenticated user id.
const UserIDKey = "userId"

// Logging logs every request except the given paths.
func Logging(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if skipped[path] {
			return
		}
		status := c.Writer.Status()
		event := logger.Log.Info()
		if status >= 400 {
			event = logger.Log.Warn()
		}
		if status >= 500 {
			event = logger.Log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("user_id", c.GetString(UserIDKey)).
			Int("body_size", c.Writer.Size()).
			Msg("request")
	}
}
