package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/mortuary-api/internal/handler/health"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	prometheushandler "github.com/jwalitptl/mortuary-api/internal/handler/prometheus"
)

// NewHealthEngine serves liveness, readiness and metrics for processes that
// have no API router, such as the standalone worker.
func NewHealthEngine(namespace string, deps map[string]health.Pinger, registry *prometheus.Registry) *gin.Engine {
	metrics := prometheushandler.New(namespace, registry)

	engine := gin.New()
	engine.Use(middleware.Recovery(), metrics.Middleware())

	health.NewHandler(deps).RegisterRoutes(&engine.RouterGroup, metrics.Handler())
	engine.GET("/metrics", metrics.Handler())
	return engine
}
