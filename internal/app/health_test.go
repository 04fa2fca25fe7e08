package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/mortuary-api/internal/handler/health"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthEngine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	redis := &stubPinger{}
	engine := NewHealthEngine("worker_test", map[string]health.Pinger{
		"database": stubPinger{},
		"redis":    redis,
	}, prometheus.NewRegistry())

	assert.Equal(t, http.StatusOK, serve(engine, "/health/live").Code)
	assert.Equal(t, http.StatusOK, serve(engine, "/health/ready").Code)

	redis.err = errors.New("connection refused")
	w := serve(engine, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis unavailable")

	w = serve(engine, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "worker_test_http_requests_total")
}
