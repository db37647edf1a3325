package http

import (
	"time"

	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/pkg/request"
)

type ServiceResponse struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           int64     `json:"price"`
	Type            string    `json:"type"`
	Location        *string   `json:"location,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewResponse(o *offering.Offering) ServiceResponse {
	return ServiceResponse{
		ID:              o.ID,
		Slug:            o.Slug,
		Name:            o.Name,
		Description:     o.Description,
		DurationMinutes: o.DurationMinutes,
		Price:           o.Price,
		Type:            string(o.Type),
		Location:        o.Location,
		IsActive:        o.IsActive,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type ListServicesRequest struct {
	request.ListParams
	Type            string `form:"type" binding:"omitempty,oneof=IN_PERSON VIRTUAL BOTH"`
	IncludeInactive bool   `form:"include_inactive"`
}

type CreateRequest struct {
	Slug            string  `json:"slug" binding:"required,max=100"`
	Name            string  `json:"name" binding:"required,max=200"`
	Description     string  `json:"description"`
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=1,max=1440"`
	Price           int64   `json:"price" binding:"min=0"`
	Type            string  `json:"type" binding:"required,oneof=IN_PERSON VIRTUAL BOTH"`
	Location        *string `json:"location"`
}

type UpdateRequest struct {
	Name            *string `json:"name" binding:"omitempty,max=200"`
	Description     *string `json:"description"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
	Price           *int64  `json:"price" binding:"omitempty,min=0"`
	Type            *string `json:"type" binding:"omitempty,oneof=IN_PERSON VIRTUAL BOTH"`
	Location        *string `json:"location"`
	IsActive        *bool   `json:"is_active"`
}

// ServiceTag is the short form embedded in other resources.
type ServiceTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
