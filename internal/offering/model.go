package offering

import (
	"net/http"
	"time"

	"github.com/bookease/bookease-backend/internal/pkg/apperror"
)

var (
	ErrNotFound        = apperror.New(http.StatusNotFound, "service not found")
	ErrInactive        = apperror.New(http.StatusConflict, "service is not active")
	ErrSlugTaken       = apperror.New(http.StatusConflict, "slug already in use")
	ErrNameRequired    = apperror.New(http.StatusBadRequest, "name is required")
	ErrInvalidSlug     = apperror.New(http.StatusBadRequest, "slug must be lowercase letters, digits and dashes")
	ErrInvalidDuration = apperror.New(http.StatusBadRequest, "duration_minutes must be positive")
	ErrInvalidPrice    = apperror.New(http.StatusBadRequest, "price must not be negative")
	ErrInvalidType     = apperror.New(http.StatusBadRequest, "type must be one of IN_PERSON, VIRTUAL, BOTH")
)

// Type describes how a service is delivered.
type Type string

const (
	TypeInPerson Type = "IN_PERSON"
	TypeVirtual  Type = "VIRTUAL"
	TypeBoth     Type = "BOTH"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInPerson, TypeVirtual, TypeBoth:
		return true
	}
	return false
}

// Offering is a bookable professional service (a consultation, a workshop).
// Every slot generated for it lasts exactly DurationMinutes.
type Offering struct {
	ID              string
	Slug            string
	Name            string
	Description     string
	DurationMinutes int
	Price           int64 // minor currency units
	Type            Type
	Location        *string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Duration returns the length of one session.
func (o *Offering) Duration() time.Duration {
	return time.Duration(o.DurationMinutes) * time.Minute
}

// Filter defines parameters for listing services.
type Filter struct {
	ActiveOnly bool
	Type       Type
	Page       int
	PageSize   int
}
