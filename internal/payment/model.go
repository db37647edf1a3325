package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/bookease/bookease-backend/internal/pkg/apperror"
)

var (
	ErrPaymentDeclined   = apperror.New(http.StatusPaymentRequired, "payment was declined, please try another payment method")
	ErrProcessingFailed  = apperror.New(http.StatusBadGateway, "payment processor unavailable, please retry")
	ErrPaymentPending    = apperror.New(http.StatusConflict, "payment has not completed yet")
	ErrNotFound          = apperror.New(http.StatusNotFound, "payment order not found")
	ErrNotPayable        = apperror.New(http.StatusConflict, "booking is not awaiting payment")
	ErrInvalidWebhook    = apperror.New(http.StatusBadRequest, "invalid webhook payload or signature")
	ErrWebhookDisabled   = apperror.New(http.StatusServiceUnavailable, "webhook not configured")
	ErrUnknownProvider   = apperror.New(http.StatusNotFound, "unknown payment provider")
	ErrInvalidOrderInput = apperror.New(http.StatusBadRequest, "invalid order amount or currency")
	ErrRefundRequired    = apperror.New(http.StatusConflict, "booking can no longer be confirmed, the payment will be refunded")
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusCompleted Status = "COMPLETED"
	StatusDeclined  Status = "DECLINED"

	// StatusRefundRequired marks money taken for a booking that could not be
	// confirmed. Such rows wait for an operator refund.
	StatusRefundRequired Status = "REFUND_REQUIRED"
)

// Payment records one processor order raised for a booking. A booking may
// collect several, one per checkout attempt.
type Payment struct {
	ID             string
	BookingID      string
	Provider       string
	OrderID        string
	IdempotencyKey string
	Amount         int64
	Currency       string
	Status         Status
	TransactionID  *string
	ApprovalURL    string
	RefundReason   *string // set together with StatusRefundRequired
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CapturedAt     *time.Time
}

// OrderRequest: Amount is in minor currency units.
type OrderRequest struct {
	Amount      int64
	Currency    string
	Name        string
	Description string
	// ReferenceID is echoed back by the processor, in webhooks too.
	ReferenceID string
	SuccessURL  string
	CancelURL   string
	// IdempotencyKey lets the processor recognize a retried create.
	IdempotencyKey string
}

type Order struct {
	OrderID     string
	ApprovalURL string
}

type CaptureStatus string

const (
	CaptureCompleted CaptureStatus = "COMPLETED"
	CaptureDeclined  CaptureStatus = "DECLINED"
	CapturePending   CaptureStatus = "PENDING"
)

type CaptureResult struct {
	Status        CaptureStatus
	TransactionID string
}

// Processor is an external payment collaborator. Transport failures are
// returned as errors; a refused payment is a CaptureDeclined result, not an
// error.
type Processor interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)
}

// WebhookEvent is a processor notification reduced to what the booking flow
// acts on. An empty Outcome means the event is acknowledged and ignored.
type WebhookEvent struct {
	ID            string
	Type          string
	OrderID       string
	BookingID     string
	TransactionID string
	Outcome       CaptureStatus
}

// WebhookParser verifies and decodes processor notifications.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, header http.Header, body []byte) (*WebhookEvent, error)
}
