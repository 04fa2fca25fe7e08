package postmortem

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mortuary-api/internal/handler"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/service/postmortem"
)

type Handler struct {
	service postmortem.PostmortemServicer
}

func NewHandler(service postmortem.PostmortemServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, writeGuard gin.HandlerFunc) {
	postmortems := r.Group("/postmortems")
	{
		postmortems.GET("", h.List)
		postmortems.POST("", writeGuard, h.Schedule)
		postmortems.GET("/:id", h.Get)
		postmortems.PATCH("/:id", writeGuard, h.Update)
	}
}

func (h *Handler) Schedule(c *gin.Context) {
	var req model.SchedulePostmortemRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	pm, err := h.service.Schedule(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(pm))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.PostmortemFilter
	if !handler.BindQuery(c, &filter) {
		return
	}

	postmortems, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(postmortems))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	pm, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(pm))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePostmortemRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	pm, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(pm))
}
