package booking

import (
	"net/http"
	"time"

	"github.com/bookease/bookease-backend/internal/pkg/apperror"
)

var (
	ErrNotFound               = apperror.New(http.StatusNotFound, "booking not found")
	ErrTimeConflict           = apperror.New(http.StatusConflict, "time slot already booked")
	ErrInvalidStateTransition = apperror.New(http.StatusConflict, "booking status does not allow this action")
	ErrCancelWindowPassed     = apperror.New(http.StatusUnprocessableEntity, "cancellation window has passed")
	ErrRescheduleWindowPassed = apperror.New(http.StatusUnprocessableEntity, "reschedule window has passed")
	ErrPermissionDenied       = apperror.New(http.StatusForbidden, "permission denied")
	ErrInvalidStatus          = apperror.New(http.StatusBadRequest, "invalid booking status")
	ErrSameTime               = apperror.New(http.StatusBadRequest, "new start time equals the current one")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Booking occupies [StartTime, EndTime) on a service's calendar. EndTime is
// always derived from the service duration. A nil UserID marks a guest booking.
type Booking struct {
	ID                string
	ServiceID         string
	ServiceName       string
	UserID            *string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     *string
	Notes             *string
	Timezone          string
	StartTime         time.Time
	EndTime           time.Time
	Status            Status
	PaymentDeclinedAt *time.Time
	ConfirmedAt       *time.Time
	CancelledAt       *time.Time
	CancelReason      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Blocks reports whether the booking keeps its interval out of generated
// availability: confirmed bookings, and pending ones whose last payment
// attempt was not declined.
func (b *Booking) Blocks() bool {
	switch b.Status {
	case StatusConfirmed:
		return true
	case StatusPending:
		return b.PaymentDeclinedAt == nil
	}
	return false
}

// Overlaps uses half-open interval semantics, so back-to-back bookings do
// not conflict.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndTime) && end.After(b.StartTime)
}

type Filter struct {
	UserID    string
	ServiceID string
	Status    Status
	From      *time.Time // bookings ending at or after From
	To        *time.Time // bookings starting at or before To
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Actor is whoever requests a change to a booking. Guests identify
// themselves by the email the booking was made with.
type Actor struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// Audit actions.
const (
	ActionCreated         = "BOOKING_CREATED"
	ActionConfirmed       = "BOOKING_CONFIRMED"
	ActionPaymentDeclined = "PAYMENT_DECLINED"
	ActionCheckoutStarted = "CHECKOUT_RESERVED"
	ActionCancelled       = "BOOKING_CANCELLED"
	ActionRescheduled     = "BOOKING_RESCHEDULED"
)

type AuditEntry struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	UserID     *string
	Details    map[string]any
	CreatedAt  time.Time
}
