package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wish-backend/internal/analyses"
	wechatauth "wish-backend/internal/auth"
	"wish-backend/internal/orders"
	"wish-backend/internal/services/health"
	"wish-backend/internal/shared/config"
	"wish-backend/internal/shared/metrics"
	"wish-backend/internal/shared/server/middleware"
	"wish-backend/internal/shared/server/respond"
	"wish-backend/internal/users"
	"wish-backend/internal/wishes"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	WishHandler     *wishes.Handler
	OrderHandler    *orders.Handler
	UserHandler     *users.Handler
	WeChatAuth      *wechatauth.WeChatService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor:     rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 20},
				"POLLING": {Rate: 20, Burst: 40},
			},
		}),
	)

	healthSvc := health.NewService()
	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})
	api.GET("/metrics", metrics.Handler())

	if deps.WeChatAuth != nil {
		deps.WeChatAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.WishHandler != nil {
		deps.WishHandler.RegisterRoutes(api)
	}
	if deps.OrderHandler != nil {
		deps.OrderHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimitGroup routes status polling into a looser bucket than writes.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/analyses/:id" {
		return "POLLING"
	}
	return "DEFAULT"
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
