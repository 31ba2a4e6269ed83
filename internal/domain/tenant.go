package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Tenant struct {
	ID               uuid.UUID       `json:"id"`
	Image            string          `json:"image,omitempty"`
	RestaurantName   string          `json:"restaurant_name"`
	Profile          string          `json:"profile"`
	ChapaAPIKey      *string         `json:"chapa_api_key,omitempty"`
	ChapaPublicKey   *string         `json:"chapa_public_key,omitempty"`
	Tax              decimal.Decimal `json:"tax"`
	ServiceCharge    decimal.Decimal `json:"service_charge"`
	MaxDiscountLimit decimal.Decimal `json:"max_discount_limit"`
	AdminID          *uuid.UUID      `json:"admin_id,omitempty"`
	Branches         []*Branch       `json:"branches"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" minimum:"-90" maximum:"90"`
	Longitude float64 `json:"longitude" minimum:"-180" maximum:"180"`
}

// EWKT renders the point in PostGIS extended well-known text (longitude first).
func (p GeoPoint) EWKT() string {
	return "SRID=4326;POINT(" +
		strconv.FormatFloat(p.Longitude, 'f', -1, 64) + " " +
		strconv.FormatFloat(p.Latitude, 'f', -1, 64) + ")"
}

// ParseEWKT parses the output of EWKT. The SRID prefix is optional.
func ParseEWKT(s string) (*GeoPoint, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[i+1:]
	}
	if !strings.HasPrefix(strings.ToUpper(s), "POINT(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("domain.ParseEWKT: %q: %w", s, ErrInvalidInput)
	}
	parts := strings.Fields(s[len("POINT(") : len(s)-1])
	if len(parts) != 2 {
		return nil, fmt.Errorf("domain.ParseEWKT: %q: %w", s, ErrInvalidInput)
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, fmt.Errorf("domain.ParseEWKT: longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, fmt.Errorf("domain.ParseEWKT: latitude: %w", err)
	}
	return &GeoPoint{Latitude: lat, Longitude: lon}, nil
}

type Branch struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	Address   string     `json:"address"`
	Location  *GeoPoint  `json:"location,omitempty"`
	IsDefault bool       `json:"is_default"`
	AdminID   *uuid.UUID `json:"admin_id,omitempty"` // user whose branch_id points here
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type TenantRepository interface {
	// CreateWithAdmin inserts the tenant and promotes adminID to a restaurant
	// user owning it, atomically.
	CreateWithAdmin(ctx context.Context, t *Tenant, adminID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByAdmin(ctx context.Context, adminID uuid.UUID) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountBranches(ctx context.Context, id uuid.UUID) (int, error)
}

type BranchRepository interface {
	// Create and Update clear the default flag of the tenant's other branches
	// when b.IsDefault is set.
	Create(ctx context.Context, b *Branch) error
	GetByID(ctx context.Context, id uuid.UUID) (*Branch, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Branch, error)
	Update(ctx context.Context, b *Branch) error
	Delete(ctx context.Context, id uuid.UUID) error
}
