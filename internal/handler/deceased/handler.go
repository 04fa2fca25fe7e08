package deceased

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/mortuary-api/internal/handler"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/service/deceased"
	"github.com/jwalitptl/mortuary-api/internal/service/storage"
)

type Handler struct {
	service deceased.DeceasedServicer
	storage storage.StorageServicer
}

func NewHandler(service deceased.DeceasedServicer, storage storage.StorageServicer) *Handler {
	return &Handler{service: service, storage: storage}
}

// RegisterRoutes mounts the patient routes. Freeing storage goes through
// storageGuard like the other storage writes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, storageGuard gin.HandlerFunc) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.Register)
		patients.GET("", h.List)
		patients.GET("/:id", h.Get)
		patients.PATCH("/:id", h.Update)
		patients.POST("/:id/unclaimed", h.MarkUnclaimed)
		patients.GET("/:id/storage", h.GetStorage)
		patients.POST("/:id/storage/release", storageGuard, h.ReleaseStorage)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.CreateDeceasedRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.Register(c.Request.Context(), &req, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(patient))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.DeceasedFilter
	if !handler.BindQuery(c, &filter) {
		return
	}

	patients, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateDeceasedRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.Update(c.Request.Context(), id, &req, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) MarkUnclaimed(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.MarkUnclaimed(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) GetStorage(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	assignment, err := h.storage.AssignmentForPatient(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(assignment))
}

func (h *Handler) ReleaseStorage(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	assignment, err := h.storage.Release(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(assignment))
}
