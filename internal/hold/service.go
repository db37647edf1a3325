package hold

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// SlotChecker verifies that start is an offered, unconflicted slot of the
// service for the given session.
type SlotChecker interface {
	CheckBookable(ctx context.Context, serviceID string, start time.Time, sessionID, excludeBookingID string) (*offering.Offering, error)
}

type Service interface {
	Place(ctx context.Context, serviceID string, start time.Time, sessionID string) (*Hold, error)
	Get(ctx context.Context, id string) (*Hold, error)
	Release(ctx context.Context, id, sessionID string) error
	ReleaseSession(ctx context.Context, serviceID, sessionID string) error
	ActiveForService(ctx context.Context, serviceID string, from, to time.Time) ([]Hold, error)
}

type service struct {
	store    Store
	slots    SlotChecker
	clock    clock.Clock
	duration time.Duration
	log      *zap.Logger
}

func NewService(store Store, slots SlotChecker, clk clock.Clock, duration time.Duration, log *zap.Logger) Service {
	return &service{
		store:    store,
		slots:    slots,
		clock:    clk,
		duration: duration,
		log:      log.Named("hold"),
	}
}

// ValidSession reports whether id can be used as a checkout session id.
func ValidSession(id string) bool {
	return sessionPattern.MatchString(id)
}

func (s *service) Place(ctx context.Context, serviceID string, start time.Time, sessionID string) (*Hold, error) {
	if !ValidSession(sessionID) {
		return nil, ErrInvalidSession
	}

	o, err := s.slots.CheckBookable(ctx, serviceID, start, sessionID, "")
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	h := &Hold{
		ID:        uuid.NewString(),
		ServiceID: o.ID,
		SessionID: sessionID,
		Start:     start.UTC(),
		End:       start.UTC().Add(o.Duration()),
		ExpiresAt: now.Add(s.duration),
	}
	if err := s.store.Place(ctx, h, now); err != nil {
		return nil, err
	}

	s.log.Debug("hold placed",
		zap.String("hold_id", h.ID),
		zap.String("service_id", h.ServiceID),
		zap.Time("start", h.Start),
		zap.Time("expires_at", h.ExpiresAt),
	)
	return h, nil
}

func (s *service) Get(ctx context.Context, id string) (*Hold, error) {
	return s.store.Get(ctx, id, s.clock.Now())
}

func (s *service) Release(ctx context.Context, id, sessionID string) error {
	return s.store.Release(ctx, id, sessionID)
}

func (s *service) ReleaseSession(ctx context.Context, serviceID, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.ReleaseSession(ctx, serviceID, sessionID)
}

func (s *service) ActiveForService(ctx context.Context, serviceID string, from, to time.Time) ([]Hold, error) {
	return s.store.ActiveForService(ctx, serviceID, from, to, s.clock.Now())
}
