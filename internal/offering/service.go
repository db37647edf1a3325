package offering

import (
	"context"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type CreateRequest struct {
	Slug            string
	Name            string
	Description     string
	DurationMinutes int
	Price           int64
	Type            Type
	Location        *string
}

type UpdateRequest struct {
	Name            *string
	Description     *string
	DurationMinutes *int
	Price           *int64
	Type            *Type
	Location        *string
	IsActive        *bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Offering, error)
	GetByID(ctx context.Context, id string) (*Offering, error)
	GetBySlug(ctx context.Context, slug string) (*Offering, error)
	// GetActive returns the service only if it can currently be booked.
	GetActive(ctx context.Context, id string) (*Offering, error)
	List(ctx context.Context, filter Filter) ([]*Offering, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Offering, error)
	Deactivate(ctx context.Context, id string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// validate checks the logical rules for an Offering.
func validate(o *Offering) error {
	if strings.TrimSpace(o.Name) == "" {
		return ErrNameRequired
	}
	if !slugPattern.MatchString(o.Slug) {
		return ErrInvalidSlug
	}
	if o.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if o.Price < 0 {
		return ErrInvalidPrice
	}
	if !o.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Offering, error) {
	o := &Offering{
		Slug:            strings.ToLower(strings.TrimSpace(req.Slug)),
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Type:            req.Type,
		Location:        req.Location,
		IsActive:        true,
	}
	if err := validate(o); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Offering, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*Offering, error) {
	return s.repo.GetBySlug(ctx, strings.ToLower(slug))
}

func (s *service) GetActive(ctx context.Context, id string) (*Offering, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.IsActive {
		return nil, ErrInactive
	}
	return o, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Offering, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Offering, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Apply non-nil fields
	if req.Name != nil {
		o.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		o.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		o.DurationMinutes = *req.DurationMinutes
	}
	if req.Price != nil {
		o.Price = *req.Price
	}
	if req.Type != nil {
		o.Type = *req.Type
	}
	if req.Location != nil {
		o.Location = req.Location
	}
	if req.IsActive != nil {
		o.IsActive = *req.IsActive
	}

	if err := validate(o); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) Deactivate(ctx context.Context, id string) error {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !o.IsActive {
		return nil
	}
	o.IsActive = false
	return s.repo.Update(ctx, o)
}
