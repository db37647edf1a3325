package booking

import "time"

// Policy holds the cancellation and reschedule cut-offs, measured back from
// the booking's start.
type Policy struct {
	CancelWindow     time.Duration
	RescheduleWindow time.Duration
}

// CanCancel reports whether now is strictly before StartTime - CancelWindow.
func (p Policy) CanCancel(b *Booking, now time.Time) bool {
	return now.Before(b.StartTime.Add(-p.CancelWindow))
}

// CanReschedule reports whether now is strictly before StartTime - RescheduleWindow.
func (p Policy) CanReschedule(b *Booking, now time.Time) bool {
	return now.Before(b.StartTime.Add(-p.RescheduleWindow))
}

// Eligibility combines the time predicates with the state machine, for display.
type Eligibility struct {
	CanCancel          bool
	CanReschedule      bool
	CancelDeadline     time.Time
	RescheduleDeadline time.Time
}

func (p Policy) Evaluate(b *Booking, now time.Time) Eligibility {
	open := b.Status == StatusPending || b.Status == StatusConfirmed
	return Eligibility{
		CanCancel:          open && p.CanCancel(b, now),
		CanReschedule:      open && p.CanReschedule(b, now),
		CancelDeadline:     b.StartTime.Add(-p.CancelWindow),
		RescheduleDeadline: b.StartTime.Add(-p.RescheduleWindow),
	}
}
