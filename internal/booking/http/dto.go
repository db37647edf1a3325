package http

import (
	"time"

	"github.com/bookease/bookease-backend/internal/booking"
	offeringHttp "github.com/bookease/bookease-backend/internal/offering/http"
	"github.com/bookease/bookease-backend/internal/pkg/request"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	ServiceID     string     `form:"service_id" binding:"omitempty,uuid"`
	Status        string     `form:"status" binding:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
	UserID        string     `form:"user_id" binding:"omitempty,uuid"`
	StartTimeFrom *time.Time `form:"start_time_from" time_format:"2006-01-02T15:04:05Z07:00"`
	StartTimeTo   *time.Time `form:"start_time_to" time_format:"2006-01-02T15:04:05Z07:00"`
	SortBy        string     `form:"sort_by" binding:"omitempty,oneof=start_time end_time created_at status"`
}

// Validate performs custom validation for ListBookingsRequest.
func (r *ListBookingsRequest) Validate() error {
	if r.StartTimeFrom != nil && r.StartTimeTo != nil && r.StartTimeFrom.After(*r.StartTimeTo) {
		return errInvalidRange
	}
	return nil
}

type BookingResponse struct {
	ID                string                  `json:"id"`
	Service           offeringHttp.ServiceTag `json:"service"`
	UserID            *string                 `json:"user_id"`
	CustomerName      string                  `json:"customer_name"`
	CustomerEmail     string                  `json:"customer_email"`
	CustomerPhone     *string                 `json:"customer_phone,omitempty"`
	Notes             *string                 `json:"notes,omitempty"`
	Timezone          string                  `json:"timezone"`
	StartTime         time.Time               `json:"start_time"`
	EndTime           time.Time               `json:"end_time"`
	Status            string                  `json:"status"`
	PaymentDeclinedAt *time.Time              `json:"payment_declined_at,omitempty"`
	ConfirmedAt       *time.Time              `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
	CancelReason      *string                 `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:                b.ID,
		Service:           offeringHttp.ServiceTag{ID: b.ServiceID, Name: b.ServiceName},
		UserID:            b.UserID,
		CustomerName:      b.CustomerName,
		CustomerEmail:     b.CustomerEmail,
		CustomerPhone:     b.CustomerPhone,
		Notes:             b.Notes,
		Timezone:          b.Timezone,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		Status:            string(b.Status),
		PaymentDeclinedAt: b.PaymentDeclinedAt,
		ConfirmedAt:       b.ConfirmedAt,
		CancelledAt:       b.CancelledAt,
		CancelReason:      b.CancelReason,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

// CreateBookingRequest carries no end time: it is derived from the service.
type CreateBookingRequest struct {
	ServiceID     string    `json:"service_id" binding:"required,uuid"`
	StartTime     time.Time `json:"start_time" binding:"required"`
	SessionID     string    `json:"session_id" binding:"omitempty,max=128"`
	CustomerName  string    `json:"customer_name" binding:"required,max=200"`
	CustomerEmail string    `json:"customer_email" binding:"required,email"`
	CustomerPhone *string   `json:"customer_phone" binding:"omitempty,max=50"`
	Notes         *string   `json:"notes" binding:"omitempty,max=2000"`
	Timezone      string    `json:"timezone" binding:"omitempty,timezone"`
}

// Guests prove ownership with the email the booking was made with.
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
	Email  string `json:"email" binding:"omitempty,email"`
}

type RescheduleBookingRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	Email     string    `json:"email" binding:"omitempty,email"`
}

type PolicyResponse struct {
	BookingID          string    `json:"booking_id"`
	Status             string    `json:"status"`
	CanCancel          bool      `json:"can_cancel"`
	CanReschedule      bool      `json:"can_reschedule"`
	CancelDeadline     time.Time `json:"cancel_deadline"`
	RescheduleDeadline time.Time `json:"reschedule_deadline"`
}

type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	UserID    *string        `json:"user_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
