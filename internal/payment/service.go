package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/booking"
	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/apperror"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

// Bookings is the part of the booking lifecycle payments drive.
type Bookings interface {
	GetByID(ctx context.Context, id string) (*booking.Booking, error)
	ReserveForCheckout(ctx context.Context, id string) (*booking.Booking, error)
	Confirm(ctx context.Context, id string) (*booking.Booking, error)
	MarkPaymentDeclined(ctx context.Context, id string) (*booking.Booking, error)
}

type Offerings interface {
	GetByID(ctx context.Context, id string) (*offering.Offering, error)
}

type Service interface {
	// StartCheckout raises a processor order for the service price of a
	// PENDING booking.
	StartCheckout(ctx context.Context, bookingID string) (*Payment, error)
	// Capture settles an order. It is idempotent per order: a repeated call
	// replays the stored outcome without contacting the processor.
	Capture(ctx context.Context, orderID string) (*Payment, *booking.Booking, error)
	HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) error
	ListForBooking(ctx context.Context, bookingID string) ([]*Payment, error)
	Provider() string
}

type Deps struct {
	Repo       Repository
	Bookings   Bookings
	Offerings  Offerings
	Processor  Processor
	Currency   string
	SuccessURL string
	CancelURL  string
	Clock      clock.Clock
	Log        *zap.Logger
}

type service struct {
	repo       Repository
	bookings   Bookings
	offerings  Offerings
	processor  Processor
	currency   string
	successURL string
	cancelURL  string
	clock      clock.Clock
	log        *zap.Logger
}

func NewService(d Deps) Service {
	return &service{
		repo:       d.Repo,
		bookings:   d.Bookings,
		offerings:  d.Offerings,
		processor:  d.Processor,
		currency:   d.Currency,
		successURL: d.SuccessURL,
		cancelURL:  d.CancelURL,
		clock:      d.Clock,
		log:        d.Log,
	}
}

func (s *service) Provider() string { return s.processor.Name() }

func (s *service) StartCheckout(ctx context.Context, bookingID string) (*Payment, error) {
	b, err := s.bookings.ReserveForCheckout(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidStateTransition) {
			return nil, ErrNotPayable
		}
		return nil, err
	}
	o, err := s.offerings.GetByID(ctx, b.ServiceID)
	if err != nil {
		return nil, err
	}

	// A retried create of the same attempt reuses the key, so the processor
	// hands back the order it already opened.
	previous, err := s.repo.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("checkout-%s-%d", b.ID, len(previous)+1)

	order, err := s.processor.CreateOrder(ctx, OrderRequest{
		Amount:      o.Price,
		Currency:    s.currency,
		Name:        o.Name,
		Description: fmt.Sprintf("%s on %s", o.Name, b.StartTime.Format("2006-01-02 15:04 MST")),
		ReferenceID: b.ID,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,

		IdempotencyKey: key,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		s.log.Error("create payment order failed", zap.String("booking_id", b.ID), zap.Error(err))
		return nil, apperror.Wrap(ErrProcessingFailed, err)
	}

	p := &Payment{
		BookingID:      b.ID,
		Provider:       s.processor.Name(),
		OrderID:        order.OrderID,
		IdempotencyKey: key,
		Amount:         o.Price,
		Currency:       s.currency,
		Status:         StatusCreated,
		ApprovalURL:    order.ApprovalURL,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		// A concurrent attempt with the same key already stored the order.
		if existing, getErr := s.repo.GetByOrderID(ctx, order.OrderID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.log.Info("checkout started",
		zap.String("booking_id", b.ID),
		zap.String("provider", p.Provider),
		zap.String("order_id", p.OrderID),
		zap.Int64("amount", p.Amount),
	)
	return p, nil
}

func (s *service) Capture(ctx context.Context, orderID string) (*Payment, *booking.Booking, error) {
	var fresh bool
	p, err := s.repo.WithOrderLock(ctx, orderID, func(p *Payment) error {
		if p.Status != StatusCreated {
			return nil
		}

		b, err := s.bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return err
		}
		// Never take money for a booking that can no longer be confirmed. A
		// declined booking gave its slot up and must start a new checkout.
		if b.Status != booking.StatusPending || b.PaymentDeclinedAt != nil {
			return ErrNotPayable
		}

		res, err := s.processor.CaptureOrder(ctx, orderID)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return err
			}
			s.log.Error("capture payment order failed", zap.String("order_id", orderID), zap.Error(err))
			return apperror.Wrap(ErrProcessingFailed, err)
		}
		return s.apply(p, res.Status, res.TransactionID, &fresh)
	})
	if err != nil {
		return nil, nil, err
	}

	b, err := s.settle(ctx, p, fresh)
	if err != nil {
		return p, b, err
	}
	return p, b, nil
}

// apply records a processor outcome on a CREATED payment.
func (s *service) apply(p *Payment, status CaptureStatus, transactionID string, fresh *bool) error {
	switch status {
	case CaptureCompleted:
		now := s.clock.Now()
		p.Status = StatusCompleted
		p.CapturedAt = &now
	case CaptureDeclined:
		p.Status = StatusDeclined
	default:
		return ErrPaymentPending
	}
	if transactionID != "" {
		p.TransactionID = &transactionID
	}
	*fresh = true
	return nil
}

// settle moves the booking to match a stored payment outcome. A completed
// payment always re-checks confirmation so a crash between the two steps
// heals on the next capture call. A completed payment that cannot confirm
// its booking is flagged REFUND_REQUIRED. A decline releases the slot only
// when it was just recorded; replays must not undo a later checkout.
func (s *service) settle(ctx context.Context, p *Payment, fresh bool) (*booking.Booking, error) {
	switch p.Status {
	case StatusCompleted:
		b, err := s.bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return nil, err
		}
		if b.Status == booking.StatusPending {
			confirmed, err := s.bookings.Confirm(ctx, p.BookingID)
			switch {
			case errors.Is(err, booking.ErrTimeConflict):
				return b, s.requireRefund(ctx, p, "slot was taken after an earlier payment was declined")
			case errors.Is(err, booking.ErrInvalidStateTransition):
				// cancelled or confirmed concurrently
				if b, err = s.bookings.GetByID(ctx, p.BookingID); err != nil {
					return nil, err
				}
			case err != nil:
				return nil, err
			default:
				b = confirmed
			}
		}
		if b.Status == booking.StatusCancelled {
			return b, s.requireRefund(ctx, p, "booking was cancelled")
		}
		if fresh {
			s.log.Info("payment captured",
				zap.String("order_id", p.OrderID),
				zap.String("booking_id", p.BookingID),
			)
		}
		return b, nil

	case StatusDeclined:
		var b *booking.Booking
		var err error
		if fresh {
			s.log.Info("payment declined",
				zap.String("order_id", p.OrderID),
				zap.String("booking_id", p.BookingID),
			)
			b, err = s.bookings.MarkPaymentDeclined(ctx, p.BookingID)
			if err != nil && !errors.Is(err, booking.ErrInvalidStateTransition) {
				return nil, err
			}
		}
		if b == nil {
			if b, err = s.bookings.GetByID(ctx, p.BookingID); err != nil {
				return nil, err
			}
		}
		return b, ErrPaymentDeclined

	case StatusRefundRequired:
		b, err := s.bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return nil, err
		}
		return b, ErrRefundRequired
	}
	return nil, ErrPaymentPending
}

// requireRefund flags a completed payment whose booking cannot be confirmed
// and always returns ErrRefundRequired, or the error of saving the flag.
func (s *service) requireRefund(ctx context.Context, p *Payment, reason string) error {
	updated, err := s.repo.WithOrderLock(ctx, p.OrderID, func(locked *Payment) error {
		if locked.Status == StatusCompleted {
			locked.Status = StatusRefundRequired
			locked.RefundReason = &reason
		}
		return nil
	})
	if err != nil {
		return err
	}
	*p = *updated

	s.log.Error("payment requires a refund",
		zap.String("order_id", p.OrderID),
		zap.String("booking_id", p.BookingID),
		zap.Int64("amount", p.Amount),
		zap.String("reason", reason),
	)
	return ErrRefundRequired
}

func (s *service) HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) error {
	if provider != s.processor.Name() {
		return ErrUnknownProvider
	}
	parser, ok := s.processor.(WebhookParser)
	if !ok {
		return ErrWebhookDisabled
	}

	evt, err := parser.ParseWebhook(ctx, header, body)
	if err != nil {
		return err
	}
	log := s.log.With(
		zap.String("provider", provider),
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
	)

	first, err := s.repo.RecordWebhookEvent(ctx, provider, evt.ID, evt.Type, body)
	if err != nil {
		return err
	}
	if !first {
		log.Info("duplicate webhook ignored")
		return nil
	}
	if evt.Outcome == "" {
		log.Debug("webhook acknowledged")
		return nil
	}
	if evt.OrderID == "" {
		log.Warn("webhook without order reference", zap.String("booking_id", evt.BookingID))
		return ErrInvalidWebhook
	}

	var fresh bool
	p, err := s.repo.WithOrderLock(ctx, evt.OrderID, func(p *Payment) error {
		if evt.BookingID != "" && evt.BookingID != p.BookingID {
			return ErrInvalidWebhook
		}
		if p.Status != StatusCreated {
			return nil
		}
		return s.apply(p, evt.Outcome, evt.TransactionID, &fresh)
	})
	if err != nil {
		log.Warn("webhook not applied", zap.String("order_id", evt.OrderID), zap.Error(err))
		return err
	}

	// Declines and refund flags are recorded outcomes; the processor must
	// not redeliver them.
	if _, err := s.settle(ctx, p, fresh); err != nil &&
		!errors.Is(err, ErrPaymentDeclined) && !errors.Is(err, ErrRefundRequired) {
		return err
	}
	return nil
}

func (s *service) ListForBooking(ctx context.Context, bookingID string) ([]*Payment, error) {
	if _, err := s.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.repo.ListByBooking(ctx, bookingID)
}
