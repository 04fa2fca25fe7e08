package release

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mortuary-api/internal/handler"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/service/release"
)

type Handler struct {
	service release.ReleaseServicer
}

func NewHandler(service release.ReleaseServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, decideGuard gin.HandlerFunc) {
	releases := r.Group("/releases")
	{
		releases.GET("", h.List)
		releases.POST("", h.Create)
		releases.GET("/:id", h.Get)
		releases.PATCH("/:id", decideGuard, h.Update)
		releases.POST("/:id/approve", decideGuard, h.Approve)
		releases.POST("/:id/reject", decideGuard, h.Reject)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateReleaseRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	release, err := h.service.Create(c.Request.Context(), &req, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(release))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.ReleaseFilter
	if !handler.BindQuery(c, &filter) {
		return
	}

	releases, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(releases))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	release, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(release))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateReleaseRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	release, err := h.service.Update(c.Request.Context(), id, &req, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(release))
}

func (h *Handler) Approve(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	release, err := h.service.Approve(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(release))
}

func (h *Handler) Reject(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.RejectReleaseRequest
	if !handler.BindOptionalJSON(c, &req) {
		return
	}

	release, err := h.service.Reject(c.Request.Context(), id, middleware.UserID(c), req.Notes)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(release))
}
