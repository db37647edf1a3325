package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	bookingHttp "github.com/bookease/bookease-backend/internal/booking/http"
	"github.com/bookease/bookease-backend/internal/payment"
	"github.com/bookease/bookease-backend/internal/pkg/request"
	"github.com/bookease/bookease-backend/internal/pkg/response"
)

// maxWebhookBody caps notification payloads at 1 MiB.
const maxWebhookBody = 1 << 20

type Handler struct {
	service payment.Service
}

func NewHandler(service payment.Service) *Handler {
	return &Handler{service: service}
}

// StartCheckout opens a processor order for a pending booking and returns
// the URL the customer approves the payment at.
func (h *Handler) StartCheckout(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	p, err := h.service.StartCheckout(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewPaymentResponse(p))
}

// Capture settles an approved order. A declined payment answers 402 with
// the booking still pending, so the customer can retry checkout.
func (h *Handler) Capture(c *gin.Context) {
	var body CaptureRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err)
		return
	}

	p, b, err := h.service.Capture(c.Request.Context(), body.OrderID)
	if err != nil && !errors.Is(err, payment.ErrPaymentDeclined) {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, CaptureResponse{
		Payment: NewPaymentResponse(p),
		Booking: bookingHttp.NewBookingResponse(b),
	})
}

func (h *Handler) ListForBooking(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, err)
		return
	}

	items, err := h.service.ListForBooking(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]PaymentResponse, len(items))
	for i, p := range items {
		out[i] = NewPaymentResponse(p)
	}
	c.JSON(http.StatusOK, out)
}

// Webhook receives processor notifications. The signature is the
// authentication, so the route carries no auth middleware.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), c.Param("provider"), c.Request.Header, body); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
