package booking

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/events"
	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

// SlotChecker verifies that start is an offered slot of the service with no
// blackout, booking or foreign hold in the way. excludeBookingID lets a
// booking being rescheduled ignore itself.
type SlotChecker interface {
	CheckBookable(ctx context.Context, serviceID string, start time.Time, sessionID, excludeBookingID string) (*offering.Offering, error)
}

// HoldReleaser drops the checkout hold a session had on a service.
type HoldReleaser interface {
	ReleaseSession(ctx context.Context, serviceID, sessionID string) error
}

type CreateRequest struct {
	ServiceID     string
	StartTime     time.Time
	SessionID     string // checkout session whose hold may cover the slot
	UserID        *string
	CustomerName  string
	CustomerEmail string
	CustomerPhone *string
	Notes         *string
	Timezone      string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	ListByServiceAndRange(ctx context.Context, serviceID string, from, to time.Time) ([]*Booking, error)

	// Confirm moves a PENDING booking to CONFIRMED. Only a completed payment
	// capture may call it.
	Confirm(ctx context.Context, id string) (*Booking, error)
	// MarkPaymentDeclined keeps the booking PENDING but releases its slot.
	MarkPaymentDeclined(ctx context.Context, id string) (*Booking, error)
	// ReserveForCheckout re-validates a PENDING booking before a new payment
	// attempt, taking its slot back if an earlier attempt was declined.
	ReserveForCheckout(ctx context.Context, id string) (*Booking, error)

	Cancel(ctx context.Context, id string, actor Actor, reason string) (*Booking, error)
	Reschedule(ctx context.Context, id string, newStart time.Time, actor Actor) (*Booking, error)
	Policy(ctx context.Context, id string) (*Booking, Eligibility, error)
	AuditTrail(ctx context.Context, id string) ([]*AuditEntry, error)
}

type service struct {
	repo      Repository
	slots     SlotChecker
	holds     HoldReleaser
	publisher events.Publisher
	policy    Policy
	clock     clock.Clock
	log       *zap.Logger
}

type Deps struct {
	Repo      Repository
	Slots     SlotChecker
	Holds     HoldReleaser
	Publisher events.Publisher
	Policy    Policy
	Clock     clock.Clock
	Log       *zap.Logger
}

func NewService(d Deps) Service {
	return &service{
		repo:      d.Repo,
		slots:     d.Slots,
		holds:     d.Holds,
		publisher: d.Publisher,
		policy:    d.Policy,
		clock:     d.Clock,
		log:       d.Log.Named("booking"),
	}
}

func audit(action string, b *Booking, userID *string, details map[string]any) *AuditEntry {
	return &AuditEntry{
		Action:     action,
		EntityType: "booking",
		EntityID:   b.ID,
		UserID:     userID,
		Details:    details,
	}
}

func actorID(a Actor) *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

func (s *service) publish(ctx context.Context, eventType string, b *Booking) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       eventType,
		Key:        b.ID,
		OccurredAt: s.clock.Now(),
		Payload: map[string]any{
			"booking_id": b.ID,
			"service_id": b.ServiceID,
			"status":     b.Status,
			"start_time": b.StartTime,
			"end_time":   b.EndTime,
		},
	})
	if err != nil {
		s.log.Warn("publish booking event failed",
			zap.String("event", eventType),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	// 1. Service must exist, be active and offer this exact slot.
	o, err := s.slots.CheckBookable(ctx, req.ServiceID, req.StartTime, req.SessionID, "")
	if err != nil {
		return nil, err
	}

	b := &Booking{
		ServiceID:     o.ID,
		ServiceName:   o.Name,
		UserID:        req.UserID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		Timezone:      req.Timezone,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.StartTime.UTC().Add(o.Duration()),
		Status:        StatusPending,
	}

	// 2. Check-and-reserve under the service lock.
	err = s.repo.WithTx(ctx, func(tx Tx) error {
		if err := tx.LockService(ctx, b.ServiceID); err != nil {
			return err
		}
		overlap, err := tx.HasOverlap(ctx, b.ServiceID, b.StartTime, b.EndTime, "")
		if err != nil {
			return err
		}
		if overlap {
			return ErrTimeConflict
		}
		if err := tx.Insert(ctx, b); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, audit(ActionCreated, b, b.UserID, map[string]any{
			"start_time": b.StartTime,
			"guest":      b.UserID == nil,
		}))
	})
	if err != nil {
		return nil, err
	}

	// 3. The booking now owns the slot; the checkout hold is redundant.
	if err := s.holds.ReleaseSession(ctx, b.ServiceID, req.SessionID); err != nil {
		s.log.Warn("release checkout hold failed", zap.String("booking_id", b.ID), zap.Error(err))
	}

	s.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("service_id", b.ServiceID),
		zap.Time("start_time", b.StartTime),
	)
	s.publish(ctx, events.BookingCreated, b)
	return b, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) ListByServiceAndRange(ctx context.Context, serviceID string, from, to time.Time) ([]*Booking, error) {
	return s.repo.ListByServiceAndRange(ctx, serviceID, from, to)
}

// transition locks the booking row, applies fn and persists the result with
// an audit entry, all in one transaction.
func (s *service) transition(ctx context.Context, id string, fn func(tx Tx, b *Booking) (*AuditEntry, error)) (*Booking, error) {
	var out *Booking
	err := s.repo.WithTx(ctx, func(tx Tx) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		entry, err := fn(tx, b)
		if err != nil {
			return err
		}
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		if entry != nil {
			if err := tx.InsertAudit(ctx, entry); err != nil {
				return err
			}
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Confirm(ctx context.Context, id string) (*Booking, error) {
	b, err := s.transition(ctx, id, func(tx Tx, b *Booking) (*AuditEntry, error) {
		if b.Status != StatusPending {
			return nil, ErrInvalidStateTransition
		}
		// A decline released the slot, so it has to be taken back first.
		if b.PaymentDeclinedAt != nil {
			if err := s.reclaimSlot(ctx, tx, b); err != nil {
				return nil, err
			}
		}
		now := s.clock.Now()
		b.Status = StatusConfirmed
		b.ConfirmedAt = &now
		b.PaymentDeclinedAt = nil
		return audit(ActionConfirmed, b, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking confirmed", zap.String("booking_id", b.ID))
	s.publish(ctx, events.BookingConfirmed, b)
	return b, nil
}

func (s *service) MarkPaymentDeclined(ctx context.Context, id string) (*Booking, error) {
	b, err := s.transition(ctx, id, func(_ Tx, b *Booking) (*AuditEntry, error) {
		if b.Status != StatusPending {
			return nil, ErrInvalidStateTransition
		}
		now := s.clock.Now()
		b.PaymentDeclinedAt = &now
		return audit(ActionPaymentDeclined, b, nil, nil), nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.PaymentDeclined, b)
	return b, nil
}

func (s *service) ReserveForCheckout(ctx context.Context, id string) (*Booking, error) {
	return s.transition(ctx, id, func(tx Tx, b *Booking) (*AuditEntry, error) {
		if b.Status != StatusPending {
			return nil, ErrInvalidStateTransition
		}
		if b.PaymentDeclinedAt == nil {
			return nil, nil
		}
		if err := s.reclaimSlot(ctx, tx, b); err != nil {
			return nil, err
		}
		b.PaymentDeclinedAt = nil
		return audit(ActionCheckoutStarted, b, nil, nil), nil
	})
}

// reclaimSlot fails with ErrTimeConflict when another booking took the slot
// of b while b was not blocking it.
func (s *service) reclaimSlot(ctx context.Context, tx Tx, b *Booking) error {
	if err := tx.LockService(ctx, b.ServiceID); err != nil {
		return err
	}
	overlap, err := tx.HasOverlap(ctx, b.ServiceID, b.StartTime, b.EndTime, b.ID)
	if err != nil {
		return err
	}
	if overlap {
		s.log.Warn("slot of declined booking was taken",
			zap.String("booking_id", b.ID),
			zap.String("service_id", b.ServiceID),
		)
		return ErrTimeConflict
	}
	return nil
}

// authorize allows admins, the owning user, or for guest bookings whoever
// presents the booking email.
func authorize(b *Booking, actor Actor) error {
	if actor.IsAdmin {
		return nil
	}
	if b.UserID != nil {
		if actor.UserID == *b.UserID {
			return nil
		}
		return ErrPermissionDenied
	}
	if actor.Email != "" && strings.EqualFold(actor.Email, b.CustomerEmail) {
		return nil
	}
	return ErrPermissionDenied
}

func (s *service) Cancel(ctx context.Context, id string, actor Actor, reason string) (*Booking, error) {
	b, err := s.transition(ctx, id, func(_ Tx, b *Booking) (*AuditEntry, error) {
		if err := authorize(b, actor); err != nil {
			return nil, err
		}
		if b.Status != StatusPending && b.Status != StatusConfirmed {
			return nil, ErrInvalidStateTransition
		}
		now := s.clock.Now()
		if !s.policy.CanCancel(b, now) {
			return nil, ErrCancelWindowPassed
		}

		previous := b.Status
		b.Status = StatusCancelled
		b.CancelledAt = &now
		if reason = strings.TrimSpace(reason); reason != "" {
			b.CancelReason = &reason
		}
		return audit(ActionCancelled, b, actorID(actor), map[string]any{
			"previous_status": previous,
			"reason":          reason,
		}), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking cancelled", zap.String("booking_id", b.ID))
	s.publish(ctx, events.BookingCancelled, b)
	return b, nil
}

func (s *service) Reschedule(ctx context.Context, id string, newStart time.Time, actor Actor) (*Booking, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(current, actor); err != nil {
		return nil, err
	}
	if current.StartTime.Equal(newStart) {
		return nil, ErrSameTime
	}

	// Validate the target slot before taking locks.
	o, err := s.slots.CheckBookable(ctx, current.ServiceID, newStart, "", current.ID)
	if err != nil {
		return nil, err
	}

	b, err := s.transition(ctx, id, func(tx Tx, b *Booking) (*AuditEntry, error) {
		if b.Status != StatusPending && b.Status != StatusConfirmed {
			return nil, ErrInvalidStateTransition
		}
		if !s.policy.CanReschedule(b, s.clock.Now()) {
			return nil, ErrRescheduleWindowPassed
		}

		if err := tx.LockService(ctx, b.ServiceID); err != nil {
			return nil, err
		}
		start := newStart.UTC()
		end := start.Add(o.Duration())
		overlap, err := tx.HasOverlap(ctx, b.ServiceID, start, end, b.ID)
		if err != nil {
			return nil, err
		}
		if overlap {
			return nil, ErrTimeConflict
		}

		previous := b.StartTime
		b.StartTime = start
		b.EndTime = end
		return audit(ActionRescheduled, b, actorID(actor), map[string]any{
			"previous_start_time": previous,
			"new_start_time":      start,
		}), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking rescheduled", zap.String("booking_id", b.ID), zap.Time("start_time", b.StartTime))
	s.publish(ctx, events.BookingRescheduled, b)
	return b, nil
}

func (s *service) Policy(ctx context.Context, id string) (*Booking, Eligibility, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Eligibility{}, err
	}
	return b, s.policy.Evaluate(b, s.clock.Now()), nil
}

func (s *service) AuditTrail(ctx context.Context, id string) ([]*AuditEntry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListAudit(ctx, id)
}
