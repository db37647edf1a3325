package http

import (
	"time"

	bookingHttp "github.com/bookease/bookease-backend/internal/booking/http"
	"github.com/bookease/bookease-backend/internal/payment"
)

type CaptureRequest struct {
	OrderID string `json:"order_id" binding:"required,max=255"`
}

type PaymentResponse struct {
	ID            string     `json:"id"`
	BookingID     string     `json:"booking_id"`
	Provider      string     `json:"provider"`
	OrderID       string     `json:"order_id"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	ApprovalURL   string     `json:"approval_url,omitempty"`
	RefundReason  *string    `json:"refund_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CapturedAt    *time.Time `json:"captured_at,omitempty"`
}

func NewPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		BookingID:     p.BookingID,
		Provider:      p.Provider,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		ApprovalURL:   p.ApprovalURL,
		RefundReason:  p.RefundReason,
		CreatedAt:     p.CreatedAt,
		CapturedAt:    p.CapturedAt,
	}
}

type CaptureResponse struct {
	Payment PaymentResponse             `json:"payment"`
	Booking bookingHttp.BookingResponse `json:"booking"`
}
