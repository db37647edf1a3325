package slot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/availability"
	"github.com/bookease/bookease-backend/internal/booking"
	"github.com/bookease/bookease-backend/internal/hold"
	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
	"github.com/bookease/bookease-backend/internal/timeutil"
)

type OfferingSource interface {
	GetActive(ctx context.Context, id string) (*offering.Offering, error)
}

type AvailabilitySource interface {
	ActiveRulesForService(ctx context.Context, serviceID string) ([]*availability.Rule, error)
	ActiveBlackoutsForRange(ctx context.Context, serviceID string, from, to time.Time) ([]*availability.Blackout, error)
}

type BookingSource interface {
	ListByServiceAndRange(ctx context.Context, serviceID string, from, to time.Time) ([]*booking.Booking, error)
}

type HoldSource interface {
	ActiveForService(ctx context.Context, serviceID string, from, to, now time.Time) ([]hold.Hold, error)
}

type Config struct {
	MinLeadTime     time.Duration
	MaxAdvanceDays  int
	DefaultTimezone string
}

// Query asks for the slots of one service between From and To.
type Query struct {
	ServiceID string
	From      time.Time
	To        time.Time
	Timezone  string
	SessionID string
}

type Service interface {
	Available(ctx context.Context, q Query) (*offering.Offering, []TimeSlot, error)
	// CheckBookable returns the service if start is an offered, available slot.
	// The caller's own holds do not block, and excludeBookingID is ignored so a
	// booking can be moved onto a slot overlapping its current one.
	CheckBookable(ctx context.Context, serviceID string, start time.Time, sessionID, excludeBookingID string) (*offering.Offering, error)
}

type service struct {
	offerings    OfferingSource
	availability AvailabilitySource
	bookings     BookingSource
	holds        HoldSource
	cfg          Config
	clock        clock.Clock
	log          *zap.Logger
}

func NewService(
	offerings OfferingSource,
	availability AvailabilitySource,
	bookings BookingSource,
	holds HoldSource,
	cfg Config,
	clk clock.Clock,
	log *zap.Logger,
) Service {
	return &service{
		offerings:    offerings,
		availability: availability,
		bookings:     bookings,
		holds:        holds,
		cfg:          cfg,
		clock:        clk,
		log:          log,
	}
}

func (s *service) horizon(now time.Time) time.Time {
	return now.AddDate(0, 0, s.cfg.MaxAdvanceDays)
}

// load gathers the generator input for one service. Data is fetched with a
// day of margin on each side so rules in zones far from the query zone are
// still evaluated against everything that could touch them.
func (s *service) load(ctx context.Context, o *offering.Offering, from, to, now time.Time) (Input, error) {
	loadFrom := from.Add(-24 * time.Hour)
	loadTo := to.Add(24*time.Hour + o.Duration())

	rules, err := s.availability.ActiveRulesForService(ctx, o.ID)
	if err != nil {
		return Input{}, err
	}
	blackouts, err := s.availability.ActiveBlackoutsForRange(ctx, o.ID, loadFrom, loadTo)
	if err != nil {
		return Input{}, err
	}
	bookings, err := s.bookings.ListByServiceAndRange(ctx, o.ID, loadFrom, loadTo)
	if err != nil {
		return Input{}, err
	}
	holds, err := s.holds.ActiveForService(ctx, o.ID, loadFrom, loadTo, now)
	if err != nil {
		return Input{}, err
	}

	return Input{
		Service:     o,
		Rules:       rules,
		Blackouts:   blackouts,
		Bookings:    bookings,
		Holds:       holds,
		WindowStart: from,
		WindowEnd:   to,
		Now:         now,
		MinLeadTime: s.cfg.MinLeadTime,
	}, nil
}

func (s *service) Available(ctx context.Context, q Query) (*offering.Offering, []TimeSlot, error) {
	if q.From.After(q.To) {
		return nil, nil, ErrInvalidWindow
	}
	tz := q.Timezone
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}
	if _, err := timeutil.LoadLocation(tz); err != nil {
		return nil, nil, err
	}

	o, err := s.offerings.GetActive(ctx, q.ServiceID)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	horizon := s.horizon(now)
	if q.From.After(horizon) {
		return o, []TimeSlot{}, nil
	}
	to := q.To
	if to.After(horizon) {
		to = horizon
	}

	in, err := s.load(ctx, o, q.From, to, now)
	if err != nil {
		return nil, nil, err
	}
	in.Timezone = tz
	in.SessionID = q.SessionID

	slots, err := Generate(in)
	if err != nil {
		return nil, nil, err
	}

	out := slots[:0]
	for _, sl := range slots {
		if !sl.Start.After(horizon) {
			out = append(out, sl)
		}
	}
	if out == nil {
		out = []TimeSlot{}
	}
	return o, out, nil
}

func (s *service) CheckBookable(ctx context.Context, serviceID string, start time.Time, sessionID, excludeBookingID string) (*offering.Offering, error) {
	o, err := s.offerings.GetActive(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start = start.UTC()
	if !start.After(now.Add(s.cfg.MinLeadTime)) {
		return nil, ErrInsufficientLeadTime
	}
	if start.After(s.horizon(now)) {
		return nil, ErrBeyondHorizon
	}

	// Walk the UTC days around start: every rule, whatever its zone, has its
	// candidates for start's civil date generated within that span.
	in, err := s.load(ctx, o, start.Add(-24*time.Hour), start.Add(24*time.Hour), now)
	if err != nil {
		return nil, err
	}
	in.Timezone = "UTC"
	in.SessionID = sessionID
	if excludeBookingID != "" {
		kept := in.Bookings[:0]
		for _, b := range in.Bookings {
			if b.ID != excludeBookingID {
				kept = append(kept, b)
			}
		}
		in.Bookings = kept
	}

	slots, err := Generate(in)
	if err != nil {
		return nil, err
	}

	offered := false
	for _, sl := range slots {
		if !sl.Start.Equal(start) {
			continue
		}
		offered = true
		if sl.IsAvailable {
			return o, nil
		}
	}
	if !offered {
		return nil, ErrNotOffered
	}

	conflict := in.ConflictAt(start, start.Add(o.Duration()))
	s.log.Debug("slot not bookable",
		zap.String("service_id", serviceID),
		zap.Time("start_time", start),
		zap.Stringer("conflict", conflict),
	)
	switch conflict {
	case BookingConflict:
		return nil, booking.ErrTimeConflict
	case HoldConflict:
		return nil, hold.ErrSlotHeld
	default:
		return nil, ErrSlotUnavailable
	}
}
