package http

import (
	"time"

	"github.com/bookease/bookease-backend/internal/availability"
	"github.com/bookease/bookease-backend/internal/pkg/request"
)

type RuleResponse struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"service_id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Timezone  string    `json:"timezone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewRuleResponse(r *availability.Rule) RuleResponse {
	return RuleResponse{
		ID:        r.ID,
		ServiceID: r.ServiceID,
		DayOfWeek: int(r.DayOfWeek),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Timezone:  r.Timezone,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type BlackoutResponse struct {
	ID        string    `json:"id"`
	ServiceID *string   `json:"service_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewBlackoutResponse(b *availability.Blackout) BlackoutResponse {
	return BlackoutResponse{
		ID:        b.ID,
		ServiceID: b.ServiceID,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		Reason:    b.Reason,
		IsActive:  b.IsActive,
		CreatedAt: b.CreatedAt,
	}
}

// DayOfWeek is a pointer so that 0 (Sunday) survives the required check.
type CreateRuleRequest struct {
	DayOfWeek *int   `json:"day_of_week" binding:"required,min=0,max=6"`
	StartTime string `json:"start_time" binding:"required,hhmm"`
	EndTime   string `json:"end_time" binding:"required,hhmm"`
	Timezone  string `json:"timezone" binding:"omitempty,timezone"`
}

type UpdateRuleRequest struct {
	DayOfWeek *int    `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	StartTime *string `json:"start_time" binding:"omitempty,hhmm"`
	EndTime   *string `json:"end_time" binding:"omitempty,hhmm"`
	Timezone  *string `json:"timezone" binding:"omitempty,timezone"`
	IsActive  *bool   `json:"is_active"`
}

type ListBlackoutsRequest struct {
	request.ListParams
	ServiceID string     `form:"service_id" binding:"omitempty,uuid"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

type CreateBlackoutRequest struct {
	ServiceID *string   `json:"service_id" binding:"omitempty,uuid"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
	Reason    string    `json:"reason" binding:"max=500"`
}

type UpdateBlackoutRequest struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Reason    *string    `json:"reason" binding:"omitempty,max=500"`
	IsActive  *bool      `json:"is_active"`
}
