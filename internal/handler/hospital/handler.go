// Package hospital exposes the facility registry and inventory routes.
package hospital

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/middleware"
	"github.com/raktaseva/blood-api/internal/model"
	hospitalsvc "github.com/raktaseva/blood-api/internal/service/hospital"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
	"github.com/raktaseva/blood-api/pkg/httputil"
)

type Handler struct {
	svc  *hospitalsvc.Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc *hospitalsvc.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	hospitals := r.Group("/hospitals")
	{
		hospitals.GET("", h.List)
		hospitals.GET("/:id", h.Get)
		hospitals.GET("/:id/inventory", h.Inventory)

		moderator := hospitals.Group("", h.auth.Authenticate(),
			h.auth.RequireRole(model.RoleModerator))
		{
			moderator.POST("", h.Create)
			moderator.PUT("/:id/inventory", h.UpdateInventory)
		}
	}
}

func (h *Handler) Create(c *gin.Context) {
	var input model.CreateHospitalRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	hospital, err := h.svc.Create(c.Request.Context(), &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, hospital)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid hospital id", err))
		return
	}

	hospital, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hospital)
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.HospitalFilters{
		Type: model.HospitalType(c.Query("type")),
		City: c.Query("city"),
	}
	if bt := c.Query("blood_type"); bt != "" {
		t := model.BloodType(bt)
		if !t.IsValid() {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid blood type filter", nil))
			return
		}
		filters.BloodType = &t
	}

	hospitals, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hospitals)
}

func (h *Handler) Inventory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid hospital id", err))
		return
	}

	inventory, err := h.svc.GetInventory(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, inventory)
}

func (h *Handler) UpdateInventory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid hospital id", err))
		return
	}

	var body struct {
		BloodType model.BloodType `json:"blood_type" binding:"required"`
		Units     int             `json:"units"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	item, err := h.svc.UpdateInventory(c.Request.Context(), id, body.BloodType, body.Units)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	httputil.RespondWithSuccess(c, item)
}
