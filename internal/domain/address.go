package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AddressLabel string

const (
	AddressLabelHome   AddressLabel = "home"
	AddressLabelOffice AddressLabel = "office"
	AddressLabelOther  AddressLabel = "other"
)

func (l AddressLabel) Valid() bool {
	return l == AddressLabelHome || l == AddressLabelOffice || l == AddressLabelOther
}

// Address is a customer delivery address. A user holds at most one address per label.
type Address struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"user_id"`
	AddressLine    string       `json:"address_line"`
	GPSCoordinates string       `json:"gps_coordinates"`
	Label          AddressLabel `json:"label"`
	IsDefault      bool         `json:"is_default"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type AddressRepository interface {
	// Create and Update clear the user's other default addresses when
	// a.IsDefault is set. A duplicate (user, label) pair yields ErrConflict.
	Create(ctx context.Context, a *Address) error
	GetByID(ctx context.Context, id uuid.UUID) (*Address, error)
	List(ctx context.Context) ([]*Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Address, error)
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, id uuid.UUID) error
}
