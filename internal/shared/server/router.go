package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"patent-backend/internal/applications"
	"patent-backend/internal/attorneys"
	"patent-backend/internal/documents"
	"patent-backend/internal/notifications"
	"patent-backend/internal/services/health"
	"patent-backend/internal/shared/config"
	"patent-backend/internal/shared/metrics"
	"patent-backend/internal/shared/server/middleware"
	"patent-backend/internal/shared/server/respond"
)

// RouterDeps holds the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config               config.Config
	Health               *health.Service
	ApplicationsHandler  *applications.Handler
	AttorneysHandler     *attorneys.Handler
	DocumentsHandler     *documents.Handler
	NotificationsHandler *notifications.Handler
	RateLimiter          *middleware.RateLimiter
}

// Default per-principal limits. Status changes and uploads are tighter than reads.
var defaultRateRules = map[string]middleware.RateLimitRule{
	"DEFAULT":                    {Rate: 10, Burst: 40},
	middleware.StatusChangeGroup: {Rate: 1, Burst: 5},
	middleware.UploadGroup:       {Rate: 0.5, Burst: 3},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    defaultRateRules,
			GroupFor: middleware.GroupByRoute,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !report.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, report)
	})
	if deps.Config.EnableDevTokenAPI {
		registerDevTokenRoutes(api)
	}
	registerMeRoutes(api)

	if deps.ApplicationsHandler != nil {
		deps.ApplicationsHandler.RegisterRoutes(api)
	}
	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.NotificationsHandler != nil {
		deps.NotificationsHandler.RegisterRoutes(api)
	}
	if deps.AttorneysHandler != nil {
		deps.AttorneysHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
