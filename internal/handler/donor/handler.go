// Package donor exposes donor registration and profile routes.
package donor

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/middleware"
	"github.com/raktaseva/blood-api/internal/model"
	donorsvc "github.com/raktaseva/blood-api/internal/service/donor"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
	"github.com/raktaseva/blood-api/pkg/httputil"
)

type Handler struct {
	svc  *donorsvc.Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc *donorsvc.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	donors := r.Group("/donors")
	{
		donors.POST("", h.Register)

		donors.GET("/me", h.auth.Authenticate(), h.Me)
		donors.PATCH("/:id", h.auth.Authenticate(), h.Update)

		moderator := donors.Group("", h.auth.Authenticate(),
			h.auth.RequireRole(model.RoleModerator, model.RoleVolunteer))
		{
			moderator.GET("", h.List)
			moderator.GET("/:id", h.Get)
			moderator.POST("/:id/donations", h.RecordDonation)
		}
	}
}

func (h *Handler) Register(c *gin.Context) {
	var input model.RegisterDonorRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	donor, err := h.svc.Register(c.Request.Context(), &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, donor)
}

func (h *Handler) Me(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	donor, err := h.svc.GetByUser(c.Request.Context(), sess.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, donor)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid donor id", err))
		return
	}

	donor, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, donor)
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.DonorFilters{
		City: c.Query("city"),
	}
	for _, bt := range c.QueryArray("blood_type") {
		t := model.BloodType(bt)
		if !t.IsValid() {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid blood type filter", nil))
			return
		}
		filters.BloodTypes = append(filters.BloodTypes, t)
	}
	if avail := c.Query("available"); avail != "" {
		v := avail == "true"
		filters.Available = &v
	}

	donors, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, donors)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid donor id", err))
		return
	}

	var input model.UpdateDonorRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	donor, err := h.svc.Update(c.Request.Context(), middleware.SessionFrom(c), id, &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, donor)
}

func (h *Handler) RecordDonation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid donor id", err))
		return
	}

	if err := h.svc.RecordDonation(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"recorded": true})
}
