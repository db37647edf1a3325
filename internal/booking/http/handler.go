package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bookease/bookease-backend/internal/auth"
	"github.com/bookease/bookease-backend/internal/booking"
	"github.com/bookease/bookease-backend/internal/pkg/request"
	"github.com/bookease/bookease-backend/internal/pkg/response"
	"github.com/bookease/bookease-backend/internal/user"
)

var errInvalidRange = errors.New("start_time_from must not be after start_time_to")

type Handler struct {
	service         booking.Service
	userService     user.Service
	defaultTimezone string
}

func NewHandler(service booking.Service, userService user.Service, defaultTimezone string) *Handler {
	return &Handler{
		service:         service,
		userService:     userService,
		defaultTimezone: defaultTimezone,
	}
}

// checkIsSysAdmin helper checks if the current user is a system admin
func (h *Handler) checkIsSysAdmin(c *gin.Context, userID string) bool {
	if userID == "" {
		return false
	}
	u, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		return false
	}
	return u.IsSystemAdmin
}

func (h *Handler) actor(c *gin.Context, guestEmail string) booking.Actor {
	userID := auth.GetUserID(c)
	return booking.Actor{
		UserID:  userID,
		Email:   guestEmail,
		IsAdmin: h.checkIsSysAdmin(c, userID),
	}
}

// List returns the caller's bookings; admins may list everyone's.
func (h *Handler) List(c *gin.Context) {
	h.list(c, h.checkIsSysAdmin(c, auth.GetUserID(c)))
}

// Mine always scopes to the caller, admins included.
func (h *Handler) Mine(c *gin.Context) {
	h.list(c, false)
}

func (h *Handler) list(c *gin.Context, isAdmin bool) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err)
		return
	}
	req.Normalize()

	// Access Control Logic
	currentUserID := auth.GetUserID(c)
	filterUserID := currentUserID
	// If Admin, they can see all or filter by specific user
	if isAdmin {
		filterUserID = req.UserID
	}

	filter := booking.Filter{
		UserID:    filterUserID,
		ServiceID: req.ServiceID,
		Status:    booking.Status(req.Status),
		From:      req.StartTimeFrom,
		To:        req.StartTimeTo,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: strings.ToUpper(req.SortOrder),
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	req := booking.CreateRequest{
		ServiceID:     body.ServiceID,
		StartTime:     body.StartTime,
		SessionID:     body.SessionID,
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
		CustomerPhone: body.CustomerPhone,
		Notes:         body.Notes,
		Timezone:      body.Timezone,
	}
	if req.Timezone == "" {
		req.Timezone = h.defaultTimezone
	}
	if userID := auth.GetUserID(c); userID != "" {
		req.UserID = &userID
	}

	b, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

// Get is public: the booking id acts as the confirmation reference.
func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var body CancelBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), uri.ID, h.actor(c, body.Email), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Reschedule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var body RescheduleBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	b, err := h.service.Reschedule(c.Request.Context(), uri.ID, body.StartTime, h.actor(c, body.Email))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Policy(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	b, el, err := h.service.Policy(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, PolicyResponse{
		BookingID:          b.ID,
		Status:             string(b.Status),
		CanCancel:          el.CanCancel,
		CanReschedule:      el.CanReschedule,
		CancelDeadline:     el.CancelDeadline,
		RescheduleDeadline: el.RescheduleDeadline,
	})
}

func (h *Handler) Audit(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	entries, err := h.service.AuditTrail(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:        e.ID,
			Action:    e.Action,
			UserID:    e.UserID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
