package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookease/bookease-backend/internal/hold"
	"github.com/bookease/bookease-backend/internal/pkg/request"
	"github.com/bookease/bookease-backend/internal/pkg/response"
)

type Handler struct {
	service hold.Service
}

func NewHandler(service hold.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Place(c *gin.Context) {
	var body PlaceHoldRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	held, err := h.service.Place(c.Request.Context(), body.ServiceID, body.StartTime, body.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewResponse(held))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	held, err := h.service.Get(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(held))
}

func (h *Handler) Release(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var q ReleaseHoldRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.service.Release(c.Request.Context(), uri.ID, q.SessionID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
