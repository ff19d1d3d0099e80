package respond

import (
	"github.com/gin-gonic/gin"

	"patent-backend/internal/shared/telemetry"
)

// ErrorBody is the error envelope every endpoint returns.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts the request with the error envelope and logs it with the
// request's identity fields. 5xx logs at error, everything else at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	for key, ctxKey := range map[string]string{
		"user_id":        "userId",
		"application_id": "applicationId",
	} {
		if v := c.GetString(ctxKey); v != "" {
			fields[key] = v
		}
	}

	log := telemetry.Warn
	if status >= 500 {
		log = telemetry.Error
	}
	log("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}
