package hold

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckBookable(_ context.Context, serviceID string, _ time.Time, _, _ string) (*offering.Offering, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &offering.Offering{ID: serviceID, DurationMinutes: 60, IsActive: true}, nil
}

func TestServicePlace(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(t0.Add(-time.Hour))
	store := NewMemoryStore()
	svc := NewService(store, stubChecker{}, clk, 10*time.Minute, zap.NewNop())

	h, err := svc.Place(ctx, "svc-1", t0, "session-aaaa")
	require.NoError(t, err)
	assert.True(t, h.End.Equal(t0.Add(time.Hour)))
	assert.True(t, h.ExpiresAt.Equal(clk.Now().Add(10*time.Minute)))

	_, err = svc.Place(ctx, "svc-1", t0.Add(30*time.Minute), "session-bbbb")
	assert.ErrorIs(t, err, ErrSlotHeld)

	// After expiry the slot can be taken by someone else.
	clk.Advance(11 * time.Minute)
	_, err = svc.Place(ctx, "svc-1", t0.Add(30*time.Minute), "session-bbbb")
	assert.NoError(t, err)

	_, err = svc.Get(ctx, h.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServicePlaceValidation(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(t0)

	svc := NewService(NewMemoryStore(), stubChecker{}, clk, 10*time.Minute, zap.NewNop())
	_, err := svc.Place(ctx, "svc-1", t0, "short")
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = svc.Place(ctx, "svc-1", t0, "has|pipe-character")
	assert.ErrorIs(t, err, ErrInvalidSession)

	svc = NewService(NewMemoryStore(), stubChecker{err: offering.ErrInactive}, clk, 10*time.Minute, zap.NewNop())
	_, err = svc.Place(ctx, "svc-1", t0, "session-aaaa")
	assert.ErrorIs(t, err, offering.ErrInactive)
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(t0)
	store := NewMemoryStore()
	require.NoError(t, store.Place(ctx, newHold("h1", "session-a", t0.Add(time.Hour), t0.Add(10*time.Minute)), t0))

	w := NewSweeper(store, clk, time.Second, zap.NewNop())
	assert.Equal(t, 0, w.SweepOnce(ctx))

	clk.Advance(time.Hour)
	assert.Equal(t, 1, w.SweepOnce(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Run(runCtx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
