package storage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mortuary-api/internal/handler"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/service/storage"
)

type Handler struct {
	service storage.StorageServicer
}

func NewHandler(service storage.StorageServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts units and assignments. Writes are gated by
// writeGuard.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, writeGuard gin.HandlerFunc) {
	units := r.Group("/storage-units")
	{
		units.GET("", h.ListUnits)
		units.POST("", writeGuard, h.CreateUnit)
		units.GET("/:id", h.GetUnit)
		units.PATCH("/:id", writeGuard, h.UpdateUnit)
	}

	assignments := r.Group("/storage-assignments")
	{
		assignments.GET("", h.ListAssignments)
		assignments.POST("", writeGuard, h.Assign)
		assignments.GET("/:id", h.GetAssignment)
		assignments.PATCH("/:id", writeGuard, h.UpdateAssignment)
	}
}

func (h *Handler) CreateUnit(c *gin.Context) {
	var req model.CreateStorageUnitRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	unit, err := h.service.CreateUnit(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(unit))
}

func (h *Handler) ListUnits(c *gin.Context) {
	var filter model.StorageUnitFilter
	if !handler.BindQuery(c, &filter) {
		return
	}

	units, err := h.service.ListUnits(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(units))
}

func (h *Handler) GetUnit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	unit, err := h.service.GetUnit(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(unit))
}

func (h *Handler) UpdateUnit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStorageUnitRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	unit, err := h.service.UpdateUnit(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(unit))
}

func (h *Handler) Assign(c *gin.Context) {
	var req model.AssignStorageRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	assignment, err := h.service.Assign(c.Request.Context(), req.DeceasedID, req.StorageUnitID, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(assignment))
}

func (h *Handler) ListAssignments(c *gin.Context) {
	var filter model.AssignmentFilter
	if !handler.BindQuery(c, &filter) {
		return
	}

	assignments, err := h.service.ListAssignments(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(assignments))
}

func (h *Handler) GetAssignment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	assignment, err := h.service.GetAssignment(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(assignment))
}

// UpdateAssignment moves the assignment to another unit or releases it.
func (h *Handler) UpdateAssignment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAssignmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	assignment, err := h.service.UpdateAssignment(c.Request.Context(), id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(assignment))
}
