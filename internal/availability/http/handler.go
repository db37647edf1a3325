package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookease/bookease-backend/internal/availability"
	"github.com/bookease/bookease-backend/internal/pkg/request"
	"github.com/bookease/bookease-backend/internal/pkg/response"
	"github.com/bookease/bookease-backend/internal/timeutil"
)

type Handler struct {
	service availability.Service
}

func NewHandler(service availability.Service) *Handler {
	return &Handler{service: service}
}

// === Rules ===

func (h *Handler) ListRules(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	rules, err := h.service.ListRules(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]RuleResponse, len(rules))
	for i, r := range rules {
		out[i] = NewRuleResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *Handler) CreateRule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var body CreateRuleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), availability.CreateRuleRequest{
		ServiceID: uri.ID,
		DayOfWeek: timeutil.Weekday(*body.DayOfWeek),
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Timezone:  body.Timezone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewRuleResponse(rule))
}

func (h *Handler) GetRule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	rule, err := h.service.GetRule(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewRuleResponse(rule))
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var body UpdateRuleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	req := availability.UpdateRuleRequest{
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Timezone:  body.Timezone,
		IsActive:  body.IsActive,
	}
	if body.DayOfWeek != nil {
		d := timeutil.Weekday(*body.DayOfWeek)
		req.DayOfWeek = &d
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), uri.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewRuleResponse(rule))
}

func (h *Handler) DeleteRule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.service.DeleteRule(c.Request.Context(), uri.ID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// === Blackouts ===

func (h *Handler) ListBlackouts(c *gin.Context) {
	var req ListBlackoutsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	req.Normalize()

	items, total, err := h.service.ListBlackouts(c.Request.Context(), availability.BlackoutFilter{
		ServiceID: req.ServiceID,
		From:      req.From,
		To:        req.To,
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]BlackoutResponse, len(items))
	for i, b := range items {
		out[i] = NewBlackoutResponse(b)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(out, req.Page, req.PageSize, total))
}

func (h *Handler) CreateBlackout(c *gin.Context) {
	var body CreateBlackoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	b, err := h.service.CreateBlackout(c.Request.Context(), availability.CreateBlackoutRequest{
		ServiceID: body.ServiceID,
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Reason:    body.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewBlackoutResponse(b))
}

func (h *Handler) GetBlackout(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	b, err := h.service.GetBlackout(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBlackoutResponse(b))
}

func (h *Handler) UpdateBlackout(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var body UpdateBlackoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	b, err := h.service.UpdateBlackout(c.Request.Context(), uri.ID, availability.UpdateBlackoutRequest{
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Reason:    body.Reason,
		IsActive:  body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBlackoutResponse(b))
}

func (h *Handler) DeleteBlackout(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.service.DeleteBlackout(c.Request.Context(), uri.ID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
