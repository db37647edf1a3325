package hold

import (
	"context"
	"net/http"
	"time"

	"github.com/bookease/bookease-backend/internal/pkg/apperror"
)

var (
	ErrNotFound       = apperror.New(http.StatusNotFound, "hold not found")
	ErrSlotHeld       = apperror.New(http.StatusConflict, "slot is held by another customer")
	ErrNotOwner       = apperror.New(http.StatusForbidden, "hold belongs to another session")
	ErrInvalidSession = apperror.New(http.StatusBadRequest, "session_id must be 8-128 letters, digits, dashes or underscores")
)

// Hold is a short-lived soft reservation of [Start, End) on one service,
// owned by the checkout session that placed it.
type Hold struct {
	ID        string
	ServiceID string
	SessionID string
	Start     time.Time
	End       time.Time
	ExpiresAt time.Time
}

// Active reports whether the hold is still in force at now. A hold expires
// once ExpiresAt is strictly before now.
func (h Hold) Active(now time.Time) bool {
	return !h.ExpiresAt.Before(now)
}

// Overlaps uses half-open interval semantics.
func (h Hold) Overlaps(start, end time.Time) bool {
	return h.Start.Before(end) && h.End.After(start)
}

// Store persists holds. Place must be atomic: it fails with ErrSlotHeld when
// an active hold of another session overlaps, and otherwise replaces any
// earlier hold the same session had on the service.
type Store interface {
	Place(ctx context.Context, h *Hold, now time.Time) error
	Get(ctx context.Context, id string, now time.Time) (*Hold, error)
	Release(ctx context.Context, id, sessionID string) error
	ReleaseSession(ctx context.Context, serviceID, sessionID string) error
	ActiveForService(ctx context.Context, serviceID string, from, to, now time.Time) ([]Hold, error)
	// SweepExpired drops expired holds and returns how many were removed.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}
