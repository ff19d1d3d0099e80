package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"patent-backend/internal/shared/server/respond"
	"patent-backend/internal/shared/telemetry"
)

// Recovery turns panics into a 500 with the standard error body. A panic
// after the response started only gets logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("http.panic", map[string]any{
				"request_id":     RequestIDFromContext(c),
				"route":          c.FullPath(),
				"method":         c.Request.Method,
				"user_id":        UserIDFromContext(c),
				"application_id": c.GetString("applicationId"),
				"error":          fmt.Sprint(rec),
				"stack":          string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", gin.H{
				"requestId": RequestIDFromContext(c),
			})
		}()
		c.Next()
	}
}
