package alert

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mortuary-api/internal/handler"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/service/alert"
)

type Handler struct {
	service alert.AlertServicer
}

func NewHandler(service alert.AlertServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, createGuard gin.HandlerFunc) {
	alerts := r.Group("/alerts")
	{
		alerts.GET("", h.List)
		alerts.POST("", createGuard, h.Create)
		alerts.GET("/:id", h.Get)
		alerts.PATCH("/:id", h.Update)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateAlertRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	a, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(a))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.AlertFilter
	if !handler.BindQuery(c, &filter) {
		return
	}

	alerts, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(alerts))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(a))
}

// Update acknowledges or resolves an alert on behalf of the caller.
func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAlertRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	a, err := h.service.Update(c.Request.Context(), id, &req, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(a))
}
