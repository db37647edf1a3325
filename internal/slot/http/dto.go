package http

import (
	"errors"
	"time"

	offeringHttp "github.com/bookease/bookease-backend/internal/offering/http"
	"github.com/bookease/bookease-backend/internal/slot"
)

const dateLayout = "2006-01-02"

var errInvalidBound = errors.New("from and to must be YYYY-MM-DD or RFC 3339 timestamps")

// ListSlotsRequest: from and to are either calendar dates, read in timezone,
// or RFC 3339 instants.
type ListSlotsRequest struct {
	From          string `form:"from"`
	To            string `form:"to"`
	Timezone      string `form:"timezone" binding:"omitempty,timezone"`
	SessionID     string `form:"session_id" binding:"omitempty,max=128"`
	AvailableOnly bool   `form:"available_only"`
}

// parseBound reads a window bound. A bare date means the start of that day,
// or its last instant when endOfDay is set.
func parseBound(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, errInvalidBound
	}
	if endOfDay {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return d, nil
}

type SlotResponse struct {
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	IsAvailable   bool       `json:"is_available"`
	IsHeld        bool       `json:"is_held"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

type SlotsResponse struct {
	Service         offeringHttp.ServiceTag `json:"service"`
	DurationMinutes int                     `json:"duration_minutes"`
	Timezone        string                  `json:"timezone"`
	From            time.Time               `json:"from"`
	To              time.Time               `json:"to"`
	Slots           []SlotResponse          `json:"slots"`
}

func NewSlotResponse(s slot.TimeSlot) SlotResponse {
	return SlotResponse{
		StartTime:     s.Start,
		EndTime:       s.End,
		IsAvailable:   s.IsAvailable,
		IsHeld:        s.IsHeld,
		HoldExpiresAt: s.HoldExpiresAt,
	}
}
