package slot

import (
	"fmt"
	"sort"
	"time"

	"github.com/bookease/bookease-backend/internal/availability"
	"github.com/bookease/bookease-backend/internal/booking"
	"github.com/bookease/bookease-backend/internal/hold"
	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/timeutil"
)

// Input is everything one generation run looks at. Generate never reads the
// clock itself; Now is part of the input.
type Input struct {
	Service   *offering.Offering
	Rules     []*availability.Rule
	Blackouts []*availability.Blackout
	Bookings  []*booking.Booking
	Holds     []hold.Hold

	WindowStart time.Time
	WindowEnd   time.Time
	// Timezone is the civil calendar the window's days are counted in.
	Timezone string

	Now         time.Time
	MinLeadTime time.Duration
	// SessionID identifies the caller's own holds, which do not block.
	SessionID string
}

// Generate walks every calendar day of the window in the input timezone and
// steps each matching rule in Step increments. Candidates starting at or
// before Now+MinLeadTime are omitted. The result is sorted by start time;
// overlapping rules may yield duplicate slots.
func Generate(in Input) ([]TimeSlot, error) {
	if in.Service == nil {
		return nil, offering.ErrNotFound
	}
	if in.WindowStart.After(in.WindowEnd) {
		return nil, ErrInvalidWindow
	}
	loc, err := timeutil.LoadLocation(in.Timezone)
	if err != nil {
		return nil, err
	}

	duration := in.Service.Duration()
	cutoff := in.Now.Add(in.MinLeadTime)
	first := timeutil.DateOf(in.WindowStart, loc)
	last := timeutil.DateOf(in.WindowEnd, loc)

	var slots []TimeSlot
	for day := first; !day.After(last); day = day.AddDays(1) {
		weekday := day.Weekday()
		for _, r := range in.Rules {
			if r.ServiceID != in.Service.ID || !r.IsActive || r.DayOfWeek != weekday {
				continue
			}
			ruleStart, err := timeutil.ResolveWallClock(r.StartTime, day, r.Timezone)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.ID, err)
			}
			ruleEnd, err := timeutil.ResolveWallClock(r.EndTime, day, r.Timezone)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.ID, err)
			}

			for c := ruleStart; !c.Add(duration).After(ruleEnd); c = c.Add(Step) {
				if !c.After(cutoff) {
					continue
				}
				slots = append(slots, in.evaluate(c, c.Add(duration)))
			}
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}

func (in Input) evaluate(start, end time.Time) TimeSlot {
	s := TimeSlot{
		Start:       start.UTC(),
		End:         end.UTC(),
		IsAvailable: in.ConflictAt(start, end) == NoConflict,
	}
	if h := in.heldBy(start, end); h != nil {
		exp := h.ExpiresAt.UTC()
		s.IsHeld = true
		s.HoldExpiresAt = &exp
	}
	return s
}

// ConflictAt reports the first reason [start, end) cannot be booked, checking
// blackouts, then bookings, then other sessions' holds.
//
// Blackouts only catch a candidate whose start or end lies inside
// [StartDate, EndDate]; a blackout strictly inside the candidate is missed.
// Bookings and holds use half-open overlap.
func (in Input) ConflictAt(start, end time.Time) Conflict {
	for _, b := range in.Blackouts {
		if b.AppliesTo(in.Service.ID) && (b.Covers(start) || b.Covers(end)) {
			return BlackoutConflict
		}
	}
	for _, b := range in.Bookings {
		if b.ServiceID == in.Service.ID && b.Blocks() && b.Overlaps(start, end) {
			return BookingConflict
		}
	}
	for _, h := range in.Holds {
		if h.ServiceID == in.Service.ID && h.SessionID != in.SessionID &&
			h.Active(in.Now) && h.Overlaps(start, end) {
			return HoldConflict
		}
	}
	return NoConflict
}

// heldBy returns the active hold overlapping [start, end), if any.
func (in Input) heldBy(start, end time.Time) *hold.Hold {
	for i := range in.Holds {
		h := &in.Holds[i]
		if h.ServiceID == in.Service.ID && h.Active(in.Now) && h.Overlaps(start, end) {
			return h
		}
	}
	return nil
}

// PlaceHold returns a copy of s marked held until now+d.
func PlaceHold(s TimeSlot, now time.Time, d time.Duration) TimeSlot {
	exp := now.Add(d)
	s.IsHeld = true
	s.HoldExpiresAt = &exp
	return s
}

// ReleaseExpiredHolds returns a copy of slots with holds that expired before
// now cleared. The input is not modified.
func ReleaseExpiredHolds(slots []TimeSlot, now time.Time) []TimeSlot {
	out := make([]TimeSlot, len(slots))
	for i, s := range slots {
		if s.IsHeld && s.HoldExpiresAt != nil && s.HoldExpiresAt.Before(now) {
			s.IsHeld = false
			s.HoldExpiresAt = nil
		}
		out[i] = s
	}
	return out
}
