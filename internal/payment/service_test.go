package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/booking"
	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

type memRepo struct {
	mu       sync.Mutex
	orderMu  sync.Mutex
	payments map[string]*Payment
	events   map[string]bool
	seq      int

	// createErr fails the next Create once.
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{payments: map[string]*Payment{}, events: map[string]bool{}}
}

func (r *memRepo) Create(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.createErr; err != nil {
		r.createErr = nil
		return err
	}
	r.seq++
	p.ID = fmt.Sprintf("pay-%d", r.seq)
	cp := *p
	r.payments[p.OrderID] = &cp
	return nil
}

func (r *memRepo) GetByOrderID(_ context.Context, orderID string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ListByBooking(_ context.Context, bookingID string) ([]*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Payment
	for _, p := range r.payments {
		if p.BookingID == bookingID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) WithOrderLock(ctx context.Context, orderID string, fn func(p *Payment) error) (*Payment, error) {
	r.orderMu.Lock()
	defer r.orderMu.Unlock()

	p, err := r.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	r.mu.Lock()
	cp := *p
	r.payments[orderID] = &cp
	r.mu.Unlock()
	return p, nil
}

func (r *memRepo) RecordWebhookEvent(_ context.Context, provider, eventID, _ string, _ []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := provider + "/" + eventID
	if r.events[key] {
		return false, nil
	}
	r.events[key] = true
	return true, nil
}

// fakeBookings applies the booking state machine to an in-memory map.
type fakeBookings struct {
	mu       sync.Mutex
	bookings map[string]*booking.Booking
	now      time.Time
	confirms int
	declines int

	// slotTaken makes a declined booking lose its slot to someone else.
	slotTaken bool
}

func (f *fakeBookings) get(id string) (*booking.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookings) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(id)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) ReserveForCheckout(_ context.Context, id string) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusPending {
		return nil, booking.ErrInvalidStateTransition
	}
	b.PaymentDeclinedAt = nil
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) Confirm(_ context.Context, id string) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusPending {
		return nil, booking.ErrInvalidStateTransition
	}
	if b.PaymentDeclinedAt != nil && f.slotTaken {
		return nil, booking.ErrTimeConflict
	}
	f.confirms++
	b.Status = booking.StatusConfirmed
	b.PaymentDeclinedAt = nil
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) MarkPaymentDeclined(_ context.Context, id string) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusPending {
		return nil, booking.ErrInvalidStateTransition
	}
	f.declines++
	now := f.now
	b.PaymentDeclinedAt = &now
	cp := *b
	return &cp, nil
}

type fakeOfferings struct{}

func (fakeOfferings) GetByID(_ context.Context, id string) (*offering.Offering, error) {
	return &offering.Offering{ID: id, Name: "Initial Consultation", DurationMinutes: 60, Price: 15000, IsActive: true}, nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	orders   int
	captures atomic.Int32
	result   *CaptureResult
	err      error
	lastReq  OrderRequest
	webhook  *WebhookEvent
	byKey    map[string]*Order
}

func (p *fakeProcessor) Name() string { return "fake" }

func (p *fakeProcessor) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.lastReq = req
	if o, ok := p.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return o, nil
	}
	p.orders++
	id := fmt.Sprintf("ORDER-%d", p.orders)
	o := &Order{OrderID: id, ApprovalURL: "https://pay.test/" + id}
	if p.byKey == nil {
		p.byKey = map[string]*Order{}
	}
	p.byKey[req.IdempotencyKey] = o
	return o, nil
}

func (p *fakeProcessor) CaptureOrder(context.Context, string) (*CaptureResult, error) {
	p.captures.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	res := *p.result
	return &res, nil
}

func (p *fakeProcessor) ParseWebhook(context.Context, http.Header, []byte) (*WebhookEvent, error) {
	if p.webhook == nil {
		return nil, ErrInvalidWebhook
	}
	return p.webhook, nil
}

type paymentFixture struct {
	svc       Service
	repo      *memRepo
	bookings  *fakeBookings
	processor *fakeProcessor
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	f := &paymentFixture{
		repo: newMemRepo(),
		bookings: &fakeBookings{now: now, bookings: map[string]*booking.Booking{
			"booking-1": {
				ID:        "booking-1",
				ServiceID: "svc-1",
				StartTime: time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC),
				EndTime:   time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC),
				Status:    booking.StatusPending,
			},
		}},
		processor: &fakeProcessor{result: &CaptureResult{Status: CaptureCompleted, TransactionID: "TX-1"}},
	}
	f.svc = NewService(Deps{
		Repo:       f.repo,
		Bookings:   f.bookings,
		Offerings:  fakeOfferings{},
		Processor:  f.processor,
		Currency:   "USD",
		SuccessURL: "https://bookease.test/checkout/success",
		CancelURL:  "https://bookease.test/checkout",
		Clock:      clock.NewFixed(now),
		Log:        zap.NewNop(),
	})
	return f
}

func (f *paymentFixture) checkout(t *testing.T) *Payment {
	t.Helper()
	p, err := f.svc.StartCheckout(context.Background(), "booking-1")
	require.NoError(t, err)
	return p
}

func TestStartCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an order for the service price", func(t *testing.T) {
		f := newPaymentFixture(t)
		p := f.checkout(t)
		assert.Equal(t, StatusCreated, p.Status)
		assert.Equal(t, int64(15000), p.Amount)
		assert.Equal(t, "ORDER-1", p.OrderID)
		assert.Equal(t, "https://pay.test/ORDER-1", p.ApprovalURL)
		assert.Equal(t, "booking-1", f.processor.lastReq.ReferenceID)
		assert.Equal(t, "USD", f.processor.lastReq.Currency)
	})

	t.Run("each attempt gets its own idempotency key", func(t *testing.T) {
		f := newPaymentFixture(t)
		first := f.checkout(t)
		assert.Equal(t, "checkout-booking-1-1", first.IdempotencyKey)
		assert.Equal(t, first.IdempotencyKey, f.processor.lastReq.IdempotencyKey)

		second := f.checkout(t)
		assert.Equal(t, "checkout-booking-1-2", second.IdempotencyKey)
		assert.NotEqual(t, first.OrderID, second.OrderID)
	})

	t.Run("retry after a failed save reuses the order", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.repo.createErr = errors.New("connection reset")
		_, err := f.svc.StartCheckout(ctx, "booking-1")
		require.Error(t, err)

		p := f.checkout(t)
		assert.Equal(t, "ORDER-1", p.OrderID)
		assert.Equal(t, "checkout-booking-1-1", p.IdempotencyKey)
		assert.Equal(t, 1, f.processor.orders)
	})

	t.Run("booking not pending", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.bookings.bookings["booking-1"].Status = booking.StatusCancelled
		_, err := f.svc.StartCheckout(ctx, "booking-1")
		assert.ErrorIs(t, err, ErrNotPayable)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.StartCheckout(ctx, "booking-9")
		assert.ErrorIs(t, err, booking.ErrNotFound)
	})

	t.Run("processor unreachable", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.processor.err = errors.New("dial tcp: connection refused")
		_, err := f.svc.StartCheckout(ctx, "booking-1")
		assert.ErrorIs(t, err, ErrProcessingFailed)
	})
}

func TestCaptureCompleted(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	order := f.checkout(t)

	p, b, err := f.svc.Capture(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	require.NotNil(t, p.TransactionID)
	assert.Equal(t, "TX-1", *p.TransactionID)
	assert.NotNil(t, p.CapturedAt)
	assert.Equal(t, booking.StatusConfirmed, b.Status)

	// Retrying replays the stored result.
	p, b, err = f.svc.Capture(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, int32(1), f.processor.captures.Load())
	assert.Equal(t, 1, f.bookings.confirms)
}

func TestCaptureConcurrentRetries(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	order := f.checkout(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.Capture(ctx, order.OrderID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.processor.captures.Load())
	assert.Equal(t, 1, f.bookings.confirms)
}

func TestCaptureDeclined(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	f.processor.result = &CaptureResult{Status: CaptureDeclined}
	order := f.checkout(t)

	p, b, err := f.svc.Capture(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, StatusDeclined, p.Status)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.NotNil(t, b.PaymentDeclinedAt)
	assert.Equal(t, 0, f.bookings.confirms)

	// A new checkout takes the slot back; replaying the old decline must not
	// release it again.
	retry := f.checkout(t)
	assert.Nil(t, f.bookings.bookings["booking-1"].PaymentDeclinedAt)

	_, _, err = f.svc.Capture(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Nil(t, f.bookings.bookings["booking-1"].PaymentDeclinedAt)
	assert.Equal(t, 1, f.bookings.declines)

	f.processor.result = &CaptureResult{Status: CaptureCompleted, TransactionID: "TX-2"}
	_, b, err = f.svc.Capture(ctx, retry.OrderID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
}

func TestCaptureFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("transport failure leaves the order retryable", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := f.checkout(t)
		f.processor.err = errors.New("i/o timeout")

		_, _, err := f.svc.Capture(ctx, order.OrderID)
		assert.ErrorIs(t, err, ErrProcessingFailed)

		stored, err := f.repo.GetByOrderID(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, StatusCreated, stored.Status)
		assert.Equal(t, booking.StatusPending, f.bookings.bookings["booking-1"].Status)

		f.processor.err = nil
		_, b, err := f.svc.Capture(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusConfirmed, b.Status)
	})

	t.Run("pending capture", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := f.checkout(t)
		f.processor.result = &CaptureResult{Status: CapturePending}

		_, _, err := f.svc.Capture(ctx, order.OrderID)
		assert.ErrorIs(t, err, ErrPaymentPending)
		stored, _ := f.repo.GetByOrderID(ctx, order.OrderID)
		assert.Equal(t, StatusCreated, stored.Status)
	})

	t.Run("declined booking is not charged on an older order", func(t *testing.T) {
		f := newPaymentFixture(t)
		older := f.checkout(t)
		f.bookings.bookings["booking-1"].PaymentDeclinedAt = &f.bookings.now

		_, _, err := f.svc.Capture(ctx, older.OrderID)
		assert.ErrorIs(t, err, ErrNotPayable)
		assert.Equal(t, int32(0), f.processor.captures.Load())
	})

	t.Run("cancelled booking is never charged", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := f.checkout(t)
		f.bookings.bookings["booking-1"].Status = booking.StatusCancelled

		_, _, err := f.svc.Capture(ctx, order.OrderID)
		assert.ErrorIs(t, err, ErrNotPayable)
		assert.Equal(t, int32(0), f.processor.captures.Load())
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, _, err := f.svc.Capture(ctx, "ORDER-404")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("completed capture confirms once", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := f.checkout(t)
		f.processor.webhook = &WebhookEvent{
			ID: "evt-1", Type: "PAYMENT.CAPTURE.COMPLETED",
			OrderID: order.OrderID, BookingID: "booking-1", TransactionID: "CAP-1",
			Outcome: CaptureCompleted,
		}

		require.NoError(t, f.svc.HandleWebhook(ctx, "fake", nil, []byte(`{}`)))
		require.NoError(t, f.svc.HandleWebhook(ctx, "fake", nil, []byte(`{}`)))

		assert.Equal(t, booking.StatusConfirmed, f.bookings.bookings["booking-1"].Status)
		assert.Equal(t, 1, f.bookings.confirms)

		// The customer's own capture call afterwards is a replay.
		p, b, err := f.svc.Capture(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Equal(t, booking.StatusConfirmed, b.Status)
		assert.Equal(t, int32(0), f.processor.captures.Load())
	})

	t.Run("declined capture releases the slot", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := f.checkout(t)
		f.processor.webhook = &WebhookEvent{ID: "evt-2", OrderID: order.OrderID, Outcome: CaptureDeclined}

		require.NoError(t, f.svc.HandleWebhook(ctx, "fake", nil, nil))
		assert.NotNil(t, f.bookings.bookings["booking-1"].PaymentDeclinedAt)
		assert.Equal(t, booking.StatusPending, f.bookings.bookings["booking-1"].Status)
	})

	t.Run("late completion after the slot was rebooked", func(t *testing.T) {
		f := newPaymentFixture(t)
		expired := f.checkout(t)
		paid := f.checkout(t)

		f.processor.webhook = &WebhookEvent{ID: "evt-5", OrderID: expired.OrderID, Outcome: CaptureDeclined}
		require.NoError(t, f.svc.HandleWebhook(ctx, "fake", nil, nil))
		f.bookings.slotTaken = true

		f.processor.webhook = &WebhookEvent{
			ID: "evt-6", OrderID: paid.OrderID, BookingID: "booking-1",
			TransactionID: "CAP-6", Outcome: CaptureCompleted,
		}
		require.NoError(t, f.svc.HandleWebhook(ctx, "fake", nil, nil))

		assert.Equal(t, booking.StatusPending, f.bookings.bookings["booking-1"].Status)
		assert.Equal(t, 0, f.bookings.confirms)
		stored, err := f.repo.GetByOrderID(ctx, paid.OrderID)
		require.NoError(t, err)
		assert.Equal(t, StatusRefundRequired, stored.Status)
		require.NotNil(t, stored.RefundReason)
		require.NotNil(t, stored.TransactionID)
		assert.Equal(t, "CAP-6", *stored.TransactionID)

		// The customer's capture call afterwards reports the refund.
		_, _, err = f.svc.Capture(ctx, paid.OrderID)
		assert.ErrorIs(t, err, ErrRefundRequired)
		assert.Equal(t, int32(0), f.processor.captures.Load())
	})

	t.Run("completion for a cancelled booking", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := f.checkout(t)
		f.bookings.bookings["booking-1"].Status = booking.StatusCancelled
		f.processor.webhook = &WebhookEvent{ID: "evt-7", OrderID: order.OrderID, Outcome: CaptureCompleted}

		require.NoError(t, f.svc.HandleWebhook(ctx, "fake", nil, nil))
		stored, err := f.repo.GetByOrderID(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, StatusRefundRequired, stored.Status)
		assert.Equal(t, "booking was cancelled", *stored.RefundReason)
	})

	t.Run("booking reference mismatch", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := f.checkout(t)
		f.processor.webhook = &WebhookEvent{ID: "evt-3", OrderID: order.OrderID, BookingID: "booking-2", Outcome: CaptureCompleted}

		err := f.svc.HandleWebhook(ctx, "fake", nil, nil)
		assert.ErrorIs(t, err, ErrInvalidWebhook)
		assert.Equal(t, booking.StatusPending, f.bookings.bookings["booking-1"].Status)
	})

	t.Run("ignored event type", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.processor.webhook = &WebhookEvent{ID: "evt-4", Type: "CHECKOUT.ORDER.APPROVED"}
		assert.NoError(t, f.svc.HandleWebhook(ctx, "fake", nil, nil))
	})

	t.Run("wrong provider", func(t *testing.T) {
		f := newPaymentFixture(t)
		err := f.svc.HandleWebhook(ctx, "paypal", nil, nil)
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}
