package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"classportal/internal/apperr"
	"classportal/internal/logger"
)

// Errors renders the last error attached with c.Error and recovers panics.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		Render(c, c.Errors.Last().Err)
	}
}

// Render writes err as the JSON error body.
func Render(c *gin.Context, err error) {
	status := apperr.Status(err)
	body := gin.H{"error": apperr.Message(err)}

	var ve *apperr.ValidationError
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		body["fields"] = ve.Fields
	}
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}
