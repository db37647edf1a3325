// Package timeutil converts between civil wall-clock values (a calendar date,
// an "HH:mm" time of day and an IANA zone) and absolute instants.
//
// All functions are pure; the only shared state is a cache of loaded zones.
package timeutil

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bookease/bookease-backend/internal/pkg/apperror"
)

var (
	ErrInvalidTimeFormat = apperror.New(http.StatusBadRequest, "time of day must be HH:mm (00:00-23:59)")
	ErrUnknownTimezone   = apperror.New(http.StatusBadRequest, "unknown IANA timezone")
)

// Weekday numbers days with Sunday = 0 through Saturday = 6. This is not the
// ISO 8601 numbering (Monday = 1); it happens to match time.Weekday.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

func (w Weekday) Valid() bool { return w >= Sunday && w <= Saturday }

func (w Weekday) String() string {
	if !w.Valid() {
		return "Weekday(" + strconv.Itoa(int(w)) + ")"
	}
	return time.Weekday(w).String()
}

// TimeOfDay is a wall-clock reading with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts exactly "HH:mm" with 0 <= HH <= 23 and 0 <= mm <= 59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return TimeOfDay{}, apperror.Wrap(ErrInvalidTimeFormat, fmt.Errorf("got %q", s))
	}
	h, errH := parseTwoDigits(s[0:2])
	m, errM := parseTwoDigits(s[3:5])
	if errH != nil || errM != nil || h > 23 || m > 59 {
		return TimeOfDay{}, apperror.Wrap(ErrInvalidTimeFormat, fmt.Errorf("got %q", s))
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func parseTwoDigits(s string) (int, error) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), nil
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Date is a civil calendar date with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of instant t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays normalizes through time.Date, so month and year rollover is handled.
func (d Date) AddDays(n int) Date {
	y, m, dd := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC).Date()
	return Date{Year: y, Month: m, Day: dd}
}

func (d Date) Weekday() Weekday {
	return Weekday(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday())
}

func (d Date) After(o Date) bool {
	if d.Year != o.Year {
		return d.Year > o.Year
	}
	if d.Month != o.Month {
		return d.Month > o.Month
	}
	return d.Day > o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

var zoneCache sync.Map // map[string]*time.Location

// LoadLocation resolves an IANA zone name, caching the result.
func LoadLocation(name string) (*time.Location, error) {
	if v, ok := zoneCache.Load(name); ok {
		return v.(*time.Location), nil
	}
	if name == "" {
		return nil, apperror.Wrap(ErrUnknownTimezone, fmt.Errorf("empty zone name"))
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperror.Wrap(ErrUnknownTimezone, err)
	}
	zoneCache.Store(name, loc)
	return loc, nil
}

// ResolveWallClock returns the instant at which clocks in timezone read
// timeOfDay on the given date. The zone offset is the one in effect on that
// date, so daylight-saving transitions are honored. A reading that falls in a
// spring-forward gap is normalized forward by the gap length, as time.Date does.
func ResolveWallClock(timeOfDay string, day Date, timezone string) (time.Time, error) {
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year, day.Month, day.Day, tod.Hour, tod.Minute, 0, 0, loc), nil
}

// IsWithinRange reports whether start <= instant <= end.
func IsWithinRange(instant, start, end time.Time) bool {
	return !instant.Before(start) && !instant.After(end)
}
