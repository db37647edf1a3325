package http

import (
	"time"

	"github.com/bookease/bookease-backend/internal/hold"
)

type PlaceHoldRequest struct {
	ServiceID string    `json:"service_id" binding:"required,uuid"`
	StartTime time.Time `json:"start_time" binding:"required"`
	SessionID string    `json:"session_id" binding:"required"`
}

type ReleaseHoldRequest struct {
	SessionID string `form:"session_id" binding:"required"`
}

// HoldResponse deliberately omits the session id.
type HoldResponse struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"service_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewResponse(h *hold.Hold) HoldResponse {
	return HoldResponse{
		ID:        h.ID,
		ServiceID: h.ServiceID,
		StartTime: h.Start,
		EndTime:   h.End,
		ExpiresAt: h.ExpiresAt,
	}
}
