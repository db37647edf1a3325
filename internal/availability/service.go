package availability

import (
	"context"
	"time"

	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/timeutil"
)

type CreateRuleRequest struct {
	ServiceID string
	DayOfWeek timeutil.Weekday
	StartTime string
	EndTime   string
	Timezone  string // empty uses the configured default
}

type UpdateRuleRequest struct {
	DayOfWeek *timeutil.Weekday
	StartTime *string
	EndTime   *string
	Timezone  *string
	IsActive  *bool
}

type CreateBlackoutRequest struct {
	ServiceID *string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

type UpdateBlackoutRequest struct {
	StartDate *time.Time
	EndDate   *time.Time
	Reason    *string
	IsActive  *bool
}

type Service interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	ListRules(ctx context.Context, serviceID string) ([]*Rule, error)
	UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*Rule, error)
	DeleteRule(ctx context.Context, id string) error

	CreateBlackout(ctx context.Context, req CreateBlackoutRequest) (*Blackout, error)
	GetBlackout(ctx context.Context, id string) (*Blackout, error)
	ListBlackouts(ctx context.Context, filter BlackoutFilter) ([]*Blackout, int, error)
	UpdateBlackout(ctx context.Context, id string, req UpdateBlackoutRequest) (*Blackout, error)
	DeleteBlackout(ctx context.Context, id string) error

	// ActiveRulesForService and ActiveBlackoutsForRange feed the slot generator.
	ActiveRulesForService(ctx context.Context, serviceID string) ([]*Rule, error)
	ActiveBlackoutsForRange(ctx context.Context, serviceID string, from, to time.Time) ([]*Blackout, error)
}

type service struct {
	repo            Repository
	offerings       offering.Service
	defaultTimezone string
}

func NewService(repo Repository, offerings offering.Service, defaultTimezone string) Service {
	return &service{repo: repo, offerings: offerings, defaultTimezone: defaultTimezone}
}

func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	// Verify that the service exists.
	if _, err := s.offerings.GetByID(ctx, req.ServiceID); err != nil {
		return nil, err
	}

	rule := &Rule{
		ServiceID: req.ServiceID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
		IsActive:  true,
	}
	if rule.Timezone == "" {
		rule.Timezone = s.defaultTimezone
	}
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) GetRule(ctx context.Context, id string) (*Rule, error) {
	return s.repo.GetRule(ctx, id)
}

func (s *service) ListRules(ctx context.Context, serviceID string) ([]*Rule, error) {
	if _, err := s.offerings.GetByID(ctx, serviceID); err != nil {
		return nil, err
	}
	return s.repo.ListRulesForService(ctx, serviceID, false)
}

func (s *service) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*Rule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DayOfWeek != nil {
		rule.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		rule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		rule.EndTime = *req.EndTime
	}
	if req.Timezone != nil {
		rule.Timezone = *req.Timezone
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, id string) error {
	return s.repo.DeleteRule(ctx, id)
}

func (s *service) CreateBlackout(ctx context.Context, req CreateBlackoutRequest) (*Blackout, error) {
	if req.ServiceID != nil {
		if _, err := s.offerings.GetByID(ctx, *req.ServiceID); err != nil {
			return nil, err
		}
	}

	b := &Blackout{
		ServiceID: req.ServiceID,
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
		Reason:    req.Reason,
		IsActive:  true,
	}
	if err := ValidateBlackout(b); err != nil {
		return nil, err
	}

	if err := s.repo.CreateBlackout(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) GetBlackout(ctx context.Context, id string) (*Blackout, error) {
	return s.repo.GetBlackout(ctx, id)
}

func (s *service) ListBlackouts(ctx context.Context, filter BlackoutFilter) ([]*Blackout, int, error) {
	return s.repo.ListBlackouts(ctx, filter)
}

func (s *service) UpdateBlackout(ctx context.Context, id string, req UpdateBlackoutRequest) (*Blackout, error) {
	b, err := s.repo.GetBlackout(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.StartDate != nil {
		b.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		b.EndDate = req.EndDate.UTC()
	}
	if req.Reason != nil {
		b.Reason = *req.Reason
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}

	if err := ValidateBlackout(b); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBlackout(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) DeleteBlackout(ctx context.Context, id string) error {
	return s.repo.DeleteBlackout(ctx, id)
}

func (s *service) ActiveRulesForService(ctx context.Context, serviceID string) ([]*Rule, error) {
	return s.repo.ListRulesForService(ctx, serviceID, true)
}

func (s *service) ActiveBlackoutsForRange(ctx context.Context, serviceID string, from, to time.Time) ([]*Blackout, error) {
	blackouts, _, err := s.repo.ListBlackouts(ctx, BlackoutFilter{
		ServiceID:  serviceID,
		From:       &from,
		To:         &to,
		ActiveOnly: true,
	})
	return blackouts, err
}
