package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/request"
	"github.com/bookease/bookease-backend/internal/pkg/response"
)

type Handler struct {
	service offering.Service
}

func NewHandler(service offering.Service) *Handler {
	return &Handler{service: service}
}

// List returns the service catalogue. Inactive services are only listed
// when include_inactive is set.
func (h *Handler) List(c *gin.Context) {
	var req ListServicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	req.Normalize()

	items, total, err := h.service.List(c.Request.Context(), offering.Filter{
		ActiveOnly: !req.IncludeInactive,
		Type:       offering.Type(req.Type),
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]ServiceResponse, len(items))
	for i, o := range items {
		out[i] = NewResponse(o)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(out, req.Page, req.PageSize, total))
}

// Get accepts either the service UUID or its slug.
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("id")
	ctx := c.Request.Context()

	var (
		o   *offering.Offering
		err error
	)
	if _, parseErr := uuid.Parse(key); parseErr == nil {
		o, err = h.service.GetByID(ctx, key)
	} else {
		o, err = h.service.GetBySlug(ctx, key)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(o))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	o, err := h.service.Create(c.Request.Context(), offering.CreateRequest{
		Slug:            body.Slug,
		Name:            body.Name,
		Description:     body.Description,
		DurationMinutes: body.DurationMinutes,
		Price:           body.Price,
		Type:            offering.Type(body.Type),
		Location:        body.Location,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewResponse(o))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	req := offering.UpdateRequest{
		Name:            body.Name,
		Description:     body.Description,
		DurationMinutes: body.DurationMinutes,
		Price:           body.Price,
		Location:        body.Location,
		IsActive:        body.IsActive,
	}
	if body.Type != nil {
		t := offering.Type(*body.Type)
		req.Type = &t
	}

	o, err := h.service.Update(c.Request.Context(), uri.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(o))
}

// Delete deactivates the service. Existing bookings keep referencing it.
func (h *Handler) Delete(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), uri.ID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
