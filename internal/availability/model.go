package availability

import (
	"net/http"
	"time"

	"github.com/bookease/bookease-backend/internal/pkg/apperror"
	"github.com/bookease/bookease-backend/internal/timeutil"
)

var (
	ErrRuleNotFound         = apperror.New(http.StatusNotFound, "availability rule not found")
	ErrBlackoutNotFound     = apperror.New(http.StatusNotFound, "blackout not found")
	ErrInvalidDayOfWeek     = apperror.New(http.StatusBadRequest, "day_of_week must be 0 (Sunday) to 6 (Saturday)")
	ErrInvalidRuleWindow    = apperror.New(http.StatusBadRequest, "start_time must be before end_time")
	ErrInvalidBlackoutRange = apperror.New(http.StatusBadRequest, "start_date must not be after end_date")
)

// Rule is a recurring weekly open-hours window for one service. StartTime
// and EndTime are "HH:mm" readings in Timezone; a rule never crosses midnight.
type Rule struct {
	ID        string
	ServiceID string
	DayOfWeek timeutil.Weekday
	StartTime string
	EndTime   string
	Timezone  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Blackout removes availability between two absolute instants. A nil
// ServiceID makes it apply to every service.
type Blackout struct {
	ID        string
	ServiceID *string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
	IsActive  bool
	CreatedAt time.Time
}

// AppliesTo reports whether the blackout is active and scoped to serviceID.
func (b *Blackout) AppliesTo(serviceID string) bool {
	if !b.IsActive {
		return false
	}
	return b.ServiceID == nil || *b.ServiceID == serviceID
}

// Covers reports whether instant lies within the blackout, bounds included.
func (b *Blackout) Covers(instant time.Time) bool {
	return timeutil.IsWithinRange(instant, b.StartDate, b.EndDate)
}

// BlackoutFilter defines parameters for listing blackouts.
type BlackoutFilter struct {
	ServiceID  string // matches service-scoped and global blackouts
	From       *time.Time
	To         *time.Time
	ActiveOnly bool
	Page       int
	PageSize   int
}

// ValidateRule checks the rule so that a malformed one is rejected when it is
// stored, never when slots are generated.
func ValidateRule(r *Rule) error {
	if !r.DayOfWeek.Valid() {
		return ErrInvalidDayOfWeek
	}
	start, err := timeutil.ParseTimeOfDay(r.StartTime)
	if err != nil {
		return err
	}
	end, err := timeutil.ParseTimeOfDay(r.EndTime)
	if err != nil {
		return err
	}
	if start.Minutes() >= end.Minutes() {
		return ErrInvalidRuleWindow
	}
	if _, err := timeutil.LoadLocation(r.Timezone); err != nil {
		return err
	}
	return nil
}

func ValidateBlackout(b *Blackout) error {
	if b.StartDate.After(b.EndDate) {
		return ErrInvalidBlackoutRange
	}
	return nil
}
