package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"patent-backend/internal/shared/telemetry"
)

// Logging emits one structured log per request, at warn for 4xx and
// error for 5xx responses.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		applicationID := c.GetString("applicationId")
		statusTransition := ""
		if raw, ok := c.Get("statusTransition"); ok {
			if s, ok := raw.(string); ok {
				statusTransition = s
			}
		}

		log := telemetry.Info
		switch status := c.Writer.Status(); {
		case status >= 500:
			log = telemetry.Error
		case status >= 400:
			log = telemetry.Warn
		}
		log("request.complete", map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            c.Writer.Status(),
			"status_transition": statusTransition,
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"role":              string(RoleFromContext(c)),
			"application_id":    applicationID,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
