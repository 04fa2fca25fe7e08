package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	alerthandler "github.com/jwalitptl/mortuary-api/internal/handler/alert"
	authhandler "github.com/jwalitptl/mortuary-api/internal/handler/auth"
	dashboardhandler "github.com/jwalitptl/mortuary-api/internal/handler/dashboard"
	deceasedhandler "github.com/jwalitptl/mortuary-api/internal/handler/deceased"
	"github.com/jwalitptl/mortuary-api/internal/handler/health"
	postmortemhandler "github.com/jwalitptl/mortuary-api/internal/handler/postmortem"
	"github.com/jwalitptl/mortuary-api/internal/handler/prometheus"
	releasehandler "github.com/jwalitptl/mortuary-api/internal/handler/release"
	storagehandler "github.com/jwalitptl/mortuary-api/internal/handler/storage"
	taskhandler "github.com/jwalitptl/mortuary-api/internal/handler/task"
	userhandler "github.com/jwalitptl/mortuary-api/internal/handler/user"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	"github.com/jwalitptl/mortuary-api/internal/model"
)

// Handlers is everything the router mounts.
type Handlers struct {
	Auth       *authhandler.Handler
	Health     *health.Handler
	Metrics    *prometheus.Handler
	Deceased   *deceasedhandler.Handler
	Storage    *storagehandler.Handler
	Postmortem *postmortemhandler.Handler
	Release    *releasehandler.Handler
	Task       *taskhandler.Handler
	Alert      *alerthandler.Handler
	Dashboard  *dashboardhandler.Handler
	User       *userhandler.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodySize      int64
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, config RouterConfig) *Router {
	engine := gin.New()

	r := &Router{
		engine: engine,
		auth:   auth,
		h:      h,
	}

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultSizeLimitConfig().MaxBodySize
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.ErrorHandler(),
		h.Metrics.Middleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: config.MaxBodySize}),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	if config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{
			Status:  "error",
			Code:    http.StatusNotFound,
			Message: "route not found",
			TraceID: c.GetString(middleware.ContextRequestID),
		})
	})

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Public routes
	r.h.Health.RegisterRoutes(api, r.h.Metrics.Handler())
	r.h.Auth.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	storageWriters := r.auth.RequireRole(model.RoleAdmin, model.RoleMortuaryStaff)
	medicalWriters := r.auth.RequireRole(model.RoleAdmin, model.RoleMedicalStaff)
	releaseDeciders := r.auth.RequireRole(model.RoleAdmin, model.RoleMedicalStaff, model.RoleMortuaryStaff)
	admins := r.auth.RequireRole(model.RoleAdmin)

	r.h.Deceased.RegisterRoutes(protected, storageWriters)
	r.h.Storage.RegisterRoutes(protected, storageWriters)
	r.h.Postmortem.RegisterRoutes(protected, medicalWriters)
	r.h.Release.RegisterRoutes(protected, releaseDeciders)
	r.h.Task.RegisterRoutes(protected)
	r.h.Alert.RegisterRoutes(protected, storageWriters)
	r.h.Dashboard.RegisterRoutes(protected)
	r.h.User.RegisterRoutes(protected, admins)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}
