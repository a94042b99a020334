// Package request exposes the emergency request API.
package request

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/middleware"
	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/internal/service/match"
	"github.com/raktaseva/blood-api/internal/service/notification"
	requestsvc "github.com/raktaseva/blood-api/internal/service/request"
	apperrors "github.com/raktaseva/blood-api/pkg/errors"
	"github.com/raktaseva/blood-api/pkg/httputil"
	"github.com/raktaseva/blood-api/pkg/logger"
)

// HeaderDataSource tells clients which backend produced a listing, so
// UIs can show a degraded-mode banner.
const HeaderDataSource = "X-Data-Source"

type Handler struct {
	svc           *requestsvc.Service
	matcher       *match.Service
	notifications *notification.Service
	audits        repository.AuditRepository
	auth          *middleware.AuthMiddleware
	logger        *logger.Logger
}

func NewHandler(
	svc *requestsvc.Service,
	matcher *match.Service,
	notifications *notification.Service,
	audits repository.AuditRepository,
	authMW *middleware.AuthMiddleware,
	log *logger.Logger,
) *Handler {
	return &Handler{
		svc:           svc,
		matcher:       matcher,
		notifications: notifications,
		audits:        audits,
		auth:          authMW,
		logger:        log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/requests")
	{
		requests.GET("", h.List)
		requests.GET("/active", h.Active)
		requests.GET("/:id", h.Get)
		requests.POST("", h.auth.OptionalAuth(), h.Create)

		requests.GET("/mine", h.auth.Authenticate(), h.Mine)
		requests.PATCH("/:id", h.auth.Authenticate(), h.Update)
		requests.POST("/:id/cancel", h.auth.Authenticate(), h.Cancel)
		requests.POST("/:id/fulfill", h.auth.Authenticate(), h.Fulfill)

		moderator := requests.Group("", h.auth.Authenticate(),
			h.auth.RequireRole(model.RoleModerator, model.RoleVolunteer))
		{
			moderator.POST("/:id/match", h.Match)
			moderator.GET("/:id/notifications", h.Notifications)
			moderator.GET("/:id/audit", h.AuditTrail)
		}
	}
}

// List serves the main discovery feed. Never a 5xx: the fallback store
// answers when the database cannot.
func (h *Handler) List(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result := h.svc.Fetch(c.Request.Context(), filters)
	c.Header(HeaderDataSource, result.Mode.String())
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) Active(c *gin.Context) {
	c.Header(HeaderDataSource, h.svc.Mode().String())
	httputil.RespondWithSuccess(c, h.svc.ActiveRequests())
}

func (h *Handler) Mine(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	httputil.RespondWithSuccess(c, h.svc.RequestsForUser(sess.UserID))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request id", err))
		return
	}

	req, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) Create(c *gin.Context) {
	var input model.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	req, err := h.svc.Create(c.Request.Context(), middleware.SessionFrom(c), &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, req)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request id", err))
		return
	}

	var input model.UpdateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	sess := middleware.SessionFrom(c)
	if err := h.authorize(c, sess, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	req, err := h.svc.Update(c.Request.Context(), sess, id, &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request id", err))
		return
	}

	var body struct {
		Reason *string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
			return
		}
	}

	sess := middleware.SessionFrom(c)
	if err := h.authorize(c, sess, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	req, err := h.svc.Cancel(c.Request.Context(), sess, id, body.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) Fulfill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request id", err))
		return
	}

	var input model.FulfillRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	req, err := h.svc.Fulfill(c.Request.Context(), middleware.SessionFrom(c), id, &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

// Match runs donor matching and fires notifications in the background;
// the response returns the matches without waiting on email delivery.
func (h *Handler) Match(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request id", err))
		return
	}

	req, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	matches, err := h.matcher.MatchRequest(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if len(matches) > 0 {
		go func(req *model.EmergencyRequest, matches []*model.DonorMatch) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			h.notifications.NotifyDonors(ctx, req, matches)
		}(req, matches)
	}

	httputil.RespondWithSuccess(c, gin.H{
		"matched": len(matches),
		"donors":  matches,
	})
}

func (h *Handler) Notifications(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request id", err))
		return
	}

	notifications, err := h.notifications.ListForRequest(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, notifications)
}

func (h *Handler) AuditTrail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request id", err))
		return
	}

	logs, err := h.audits.ListForEntity(c.Request.Context(), "emergency_request", id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, logs)
}

// authorize lets moderators touch any request and requesters touch
// their own. Anonymous requests are moderator-only once filed.
func (h *Handler) authorize(c *gin.Context, sess *model.Session, id uuid.UUID) error {
	if sess.CanModerate() {
		return nil
	}

	req, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		return err
	}
	if req.RequesterID == nil || *req.RequesterID != sess.UserID {
		return apperrors.Forbidden("not the owner of this request")
	}
	return nil
}

func parseFilters(c *gin.Context) (*model.RequestFilters, error) {
	filters := &model.RequestFilters{}

	for _, s := range c.QueryArray("status") {
		filters.Statuses = append(filters.Statuses, model.RequestStatus(s))
	}
	for _, u := range c.QueryArray("urgency") {
		urgency := model.Urgency(u)
		if !urgency.IsValid() {
			return nil, apperrors.BadRequest("invalid urgency filter", nil)
		}
		filters.Urgencies = append(filters.Urgencies, urgency)
	}
	if bt := c.Query("blood_type"); bt != "" {
		t := model.BloodType(bt)
		if !t.IsValid() {
			return nil, apperrors.BadRequest("invalid blood type filter", nil)
		}
		filters.BloodType = &t
	}
	if rid := c.Query("requester_id"); rid != "" {
		id, err := uuid.Parse(rid)
		if err != nil {
			return nil, apperrors.BadRequest("invalid requester id", err)
		}
		filters.RequesterID = &id
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, apperrors.BadRequest("invalid limit", err)
		}
		filters.Limit = n
	}
	return filters, nil
}
