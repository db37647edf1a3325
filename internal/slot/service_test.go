package slot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/availability"
	"github.com/bookease/bookease-backend/internal/booking"
	"github.com/bookease/bookease-backend/internal/hold"
	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

type fakeOfferings struct {
	o *offering.Offering
}

func (f fakeOfferings) GetActive(_ context.Context, id string) (*offering.Offering, error) {
	if f.o == nil || f.o.ID != id {
		return nil, offering.ErrNotFound
	}
	if !f.o.IsActive {
		return nil, offering.ErrInactive
	}
	return f.o, nil
}

type fakeAvailability struct {
	rules     []*availability.Rule
	blackouts []*availability.Blackout
}

func (f *fakeAvailability) ActiveRulesForService(context.Context, string) ([]*availability.Rule, error) {
	return f.rules, nil
}

func (f *fakeAvailability) ActiveBlackoutsForRange(context.Context, string, time.Time, time.Time) ([]*availability.Blackout, error) {
	return f.blackouts, nil
}

type fakeBookings struct {
	bookings []*booking.Booking
}

func (f *fakeBookings) ListByServiceAndRange(context.Context, string, time.Time, time.Time) ([]*booking.Booking, error) {
	out := make([]*booking.Booking, len(f.bookings))
	copy(out, f.bookings)
	return out, nil
}

type slotFixture struct {
	svc          Service
	offering     *offering.Offering
	availability *fakeAvailability
	bookings     *fakeBookings
	holds        *hold.MemoryStore
	clock        *clock.Fixed
}

func newSlotFixture() *slotFixture {
	f := &slotFixture{
		offering:     consultation(60),
		availability: &fakeAvailability{rules: []*availability.Rule{mondayRule("09:00", "17:00")}},
		bookings:     &fakeBookings{},
		holds:        hold.NewMemoryStore(),
		clock:        clock.NewFixed(at(8, 0).AddDate(0, 0, -7)),
	}
	f.svc = NewService(
		fakeOfferings{o: f.offering},
		f.availability,
		f.bookings,
		f.holds,
		Config{MinLeadTime: 2 * time.Hour, MaxAdvanceDays: 30, DefaultTimezone: nyc},
		f.clock,
		zap.NewNop(),
	)
	return f
}

func (f *slotFixture) monday() Query {
	return Query{ServiceID: "svc-1", From: at(0, 0), To: at(23, 59)}
}

func TestAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the default timezone", func(t *testing.T) {
		f := newSlotFixture()
		o, slots, err := f.svc.Available(ctx, f.monday())
		require.NoError(t, err)
		assert.Equal(t, "svc-1", o.ID)
		assert.Len(t, slots, 15)
	})

	t.Run("invalid window", func(t *testing.T) {
		f := newSlotFixture()
		q := f.monday()
		q.From, q.To = q.To, q.From
		_, _, err := f.svc.Available(ctx, q)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("inactive service", func(t *testing.T) {
		f := newSlotFixture()
		f.offering.IsActive = false
		_, _, err := f.svc.Available(ctx, f.monday())
		assert.ErrorIs(t, err, offering.ErrInactive)
	})

	t.Run("window past the horizon is empty", func(t *testing.T) {
		f := newSlotFixture()
		q := f.monday()
		q.From = q.From.AddDate(0, 0, 35)
		q.To = q.To.AddDate(0, 0, 35)
		_, slots, err := f.svc.Available(ctx, q)
		require.NoError(t, err)
		assert.NotNil(t, slots)
		assert.Empty(t, slots)
	})

	t.Run("window end is clamped to the horizon", func(t *testing.T) {
		f := newSlotFixture()
		// Saturday 10 Jan 08:00, so the horizon is Monday 9 Feb 08:00.
		f.clock.Set(at(8, 0).AddDate(0, 0, -2))
		q := f.monday()
		q.To = q.To.AddDate(0, 0, 60)
		_, slots, err := f.svc.Available(ctx, q)
		require.NoError(t, err)

		horizon := f.clock.Now().AddDate(0, 0, 30)
		require.NotEmpty(t, slots)
		for _, s := range slots {
			assert.False(t, s.Start.After(horizon))
		}
		// Mondays 12 Jan to 2 Feb are inside; every 9 Feb slot starts after 08:00.
		assert.Len(t, slots, 60)
	})

	t.Run("Scenario E: a declined booking frees its slot", func(t *testing.T) {
		f := newSlotFixture()
		b := &booking.Booking{
			ID:        "b-1",
			ServiceID: "svc-1",
			StartTime: at(10, 0),
			EndTime:   at(11, 0),
			Status:    booking.StatusPending,
		}
		f.bookings.bookings = []*booking.Booking{b}

		_, slots, err := f.svc.Available(ctx, f.monday())
		require.NoError(t, err)
		assert.Equal(t, []string{"09:30", "10:00", "10:30"}, unavailable(slots))

		declined := f.clock.Now()
		b.PaymentDeclinedAt = &declined

		_, slots, err = f.svc.Available(ctx, f.monday())
		require.NoError(t, err)
		assert.Empty(t, unavailable(slots))
	})
}

func TestCheckBookable(t *testing.T) {
	ctx := context.Background()

	t.Run("offered slot", func(t *testing.T) {
		f := newSlotFixture()
		o, err := f.svc.CheckBookable(ctx, "svc-1", at(10, 0), "", "")
		require.NoError(t, err)
		assert.Equal(t, "svc-1", o.ID)
	})

	t.Run("not on the grid", func(t *testing.T) {
		f := newSlotFixture()
		_, err := f.svc.CheckBookable(ctx, "svc-1", at(10, 15), "", "")
		assert.ErrorIs(t, err, ErrNotOffered)
	})

	t.Run("outside rule hours", func(t *testing.T) {
		f := newSlotFixture()
		_, err := f.svc.CheckBookable(ctx, "svc-1", at(16, 30), "", "")
		assert.ErrorIs(t, err, ErrNotOffered)
	})

	t.Run("inside lead time", func(t *testing.T) {
		f := newSlotFixture()
		f.clock.Set(at(8, 0))
		_, err := f.svc.CheckBookable(ctx, "svc-1", at(10, 0), "", "")
		assert.ErrorIs(t, err, ErrInsufficientLeadTime)
	})

	t.Run("beyond horizon", func(t *testing.T) {
		f := newSlotFixture()
		_, err := f.svc.CheckBookable(ctx, "svc-1", at(10, 0).AddDate(0, 0, 35), "", "")
		assert.ErrorIs(t, err, ErrBeyondHorizon)
	})

	t.Run("unknown service", func(t *testing.T) {
		f := newSlotFixture()
		_, err := f.svc.CheckBookable(ctx, "svc-9", at(10, 0), "", "")
		assert.ErrorIs(t, err, offering.ErrNotFound)
	})

	t.Run("blackout", func(t *testing.T) {
		f := newSlotFixture()
		f.availability.blackouts = []*availability.Blackout{{StartDate: at(9, 0), EndDate: at(12, 0), IsActive: true}}
		_, err := f.svc.CheckBookable(ctx, "svc-1", at(10, 0), "", "")
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("booking conflict unless excluded", func(t *testing.T) {
		f := newSlotFixture()
		f.bookings.bookings = []*booking.Booking{{
			ID: "b-1", ServiceID: "svc-1", StartTime: at(10, 0), EndTime: at(11, 0), Status: booking.StatusConfirmed,
		}}
		_, err := f.svc.CheckBookable(ctx, "svc-1", at(10, 30), "", "")
		assert.ErrorIs(t, err, booking.ErrTimeConflict)

		_, err = f.svc.CheckBookable(ctx, "svc-1", at(10, 30), "", "b-1")
		assert.NoError(t, err)
		assert.Len(t, f.bookings.bookings, 1)
	})

	t.Run("holds", func(t *testing.T) {
		f := newSlotFixture()
		now := f.clock.Now()
		require.NoError(t, f.holds.Place(ctx, &hold.Hold{
			ID: "h-1", ServiceID: "svc-1", SessionID: "session-a",
			Start: at(10, 0), End: at(11, 0), ExpiresAt: now.Add(10 * time.Minute),
		}, now))

		_, err := f.svc.CheckBookable(ctx, "svc-1", at(10, 0), "session-b", "")
		assert.ErrorIs(t, err, hold.ErrSlotHeld)

		_, err = f.svc.CheckBookable(ctx, "svc-1", at(10, 0), "session-a", "")
		assert.NoError(t, err, "the holder may book its own slot")

		f.clock.Advance(11 * time.Minute)
		_, err = f.svc.CheckBookable(ctx, "svc-1", at(10, 0), "session-b", "")
		assert.NoError(t, err, "expired holds stop blocking")
	})
}
