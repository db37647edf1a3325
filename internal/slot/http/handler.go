package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	offeringHttp "github.com/bookease/bookease-backend/internal/offering/http"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
	"github.com/bookease/bookease-backend/internal/pkg/request"
	"github.com/bookease/bookease-backend/internal/pkg/response"
	"github.com/bookease/bookease-backend/internal/slot"
	"github.com/bookease/bookease-backend/internal/timeutil"
)

// defaultSpanDays is how many days are listed when to is omitted.
const defaultSpanDays = 7

type Handler struct {
	service         slot.Service
	clock           clock.Clock
	defaultTimezone string
}

func NewHandler(service slot.Service, clk clock.Clock, defaultTimezone string) *Handler {
	return &Handler{service: service, clock: clk, defaultTimezone: defaultTimezone}
}

// List returns the generated slots of one service. Without from, the window
// starts today; without to, it spans a week.
func (h *Handler) List(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}
	var req ListSlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	tz := req.Timezone
	if tz == "" {
		tz = h.defaultTimezone
	}
	loc, err := timeutil.LoadLocation(tz)
	if err != nil {
		response.Error(c, err)
		return
	}

	var from, to time.Time
	if req.From == "" {
		y, m, d := h.clock.Now().In(loc).Date()
		from = time.Date(y, m, d, 0, 0, 0, 0, loc)
	} else if from, err = parseBound(req.From, loc, false); err != nil {
		response.BadRequest(c, err)
		return
	}
	if req.To == "" {
		to = from.AddDate(0, 0, defaultSpanDays).Add(-time.Nanosecond)
	} else if to, err = parseBound(req.To, loc, true); err != nil {
		response.BadRequest(c, err)
		return
	}

	o, slots, err := h.service.Available(c.Request.Context(), slot.Query{
		ServiceID: uri.ID,
		From:      from,
		To:        to,
		Timezone:  tz,
		SessionID: req.SessionID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		if req.AvailableOnly && !s.IsAvailable {
			continue
		}
		out = append(out, NewSlotResponse(s))
	}
	c.JSON(http.StatusOK, SlotsResponse{
		Service:         offeringHttp.ServiceTag{ID: o.ID, Name: o.Name},
		DurationMinutes: o.DurationMinutes,
		Timezone:        tz,
		From:            from.UTC(),
		To:              to.UTC(),
		Slots:           out,
	})
}
