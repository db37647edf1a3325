package slot

import (
	"net/http"
	"time"

	"github.com/bookease/bookease-backend/internal/pkg/apperror"
)

// Step is the distance between consecutive candidate starts. It is independent
// of the service duration: it sets how densely slots are offered, not how long
// they are.
const Step = 30 * time.Minute

var (
	ErrInvalidWindow        = apperror.New(http.StatusBadRequest, "window start must not be after window end")
	ErrNotOffered           = apperror.New(http.StatusUnprocessableEntity, "start time is not an offered slot for this service")
	ErrInsufficientLeadTime = apperror.New(http.StatusUnprocessableEntity, "start time is inside the minimum lead time")
	ErrBeyondHorizon        = apperror.New(http.StatusUnprocessableEntity, "start time is beyond the advance booking horizon")
	ErrSlotUnavailable      = apperror.New(http.StatusConflict, "slot is unavailable")
)

// TimeSlot is a derived view of one candidate interval. It is recomputed on
// demand and never stored.
type TimeSlot struct {
	Start         time.Time
	End           time.Time
	IsAvailable   bool
	IsHeld        bool
	HoldExpiresAt *time.Time
}

// Conflict names what makes a candidate unavailable.
type Conflict int

const (
	NoConflict Conflict = iota
	BlackoutConflict
	BookingConflict
	HoldConflict
)

func (c Conflict) String() string {
	switch c {
	case NoConflict:
		return "none"
	case BlackoutConflict:
		return "blackout"
	case BookingConflict:
		return "booking"
	case HoldConflict:
		return "hold"
	default:
		return "unknown"
	}
}
