package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/server/middleware"
)

type AddressFields struct {
	AddressLine    *string `json:"address_line,omitempty" minLength:"1" maxLength:"500" doc:"Street address"`
	GPSCoordinates *string `json:"gps_coordinates,omitempty" maxLength:"100" doc:"Free-form coordinates from the device"`
	Label          *string `json:"label,omitempty" enum:"home,office,other" doc:"One address per label"`
	IsDefault      *bool   `json:"is_default,omitempty"`
}

type CreateAddressInput struct {
	Body AddressFields
}

type UpdateAddressInput struct {
	ID   uuid.UUID `path:"id" doc:"Address ID"`
	Body AddressFields
}

type AddressIDInput struct {
	ID uuid.UUID `path:"id" doc:"Address ID"`
}

type AddressOutput struct {
	Body *domain.Address
}

type ListAddressesOutput struct {
	Body []*domain.Address
}

func (f AddressFields) apply(a *domain.Address) {
	if f.AddressLine != nil {
		a.AddressLine = strings.TrimSpace(*f.AddressLine)
	}
	if f.GPSCoordinates != nil {
		a.GPSCoordinates = strings.TrimSpace(*f.GPSCoordinates)
	}
	if f.Label != nil {
		a.Label = domain.AddressLabel(*f.Label)
	}
	if f.IsDefault != nil {
		a.IsDefault = *f.IsDefault
	}
}

func ownedAddress(ctx context.Context, store DataStore, p middleware.Principal, id uuid.UUID) (*domain.Address, error) {
	a, err := store.Addresses().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("Address not found")
		}
		return nil, huma.Error500InternalServerError("failed to get address", err)
	}
	if a.UserID != p.UserID && !p.IsAdmin() {
		return nil, huma.Error403Forbidden("You can only access your own addresses.")
	}
	return a, nil
}

func addressWriteError(err error, action string) error {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("An address with this label already exists.")
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("Address not found")
	}
	return huma.Error500InternalServerError("failed to "+action+" address", err)
}

func RegisterAddressRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-addresses",
		Method:      http.MethodGet,
		Path:        "/customer/addresses",
		Summary:     "List delivery addresses",
		Tags:        []string{"Customer"},
	}, func(ctx context.Context, _ *struct{}) (*ListAddressesOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		var addrs []*domain.Address
		if p.IsAdmin() {
			addrs, err = store.Addresses().List(ctx)
		} else {
			addrs, err = store.Addresses().ListByUser(ctx, p.UserID)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list addresses", err)
		}
		return &ListAddressesOutput{Body: addrs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-address",
		Method:      http.MethodPost,
		Path:        "/customer/addresses",
		Summary:     "Add a delivery address",
		Tags:        []string{"Customer"},
	}, func(ctx context.Context, input *CreateAddressInput) (*AddressOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if input.Body.AddressLine == nil {
			return nil, huma.Error400BadRequest("address_line is required")
		}

		now := time.Now()
		a := &domain.Address{
			ID:        uuid.New(),
			UserID:    p.UserID,
			Label:     domain.AddressLabelHome,
			CreatedAt: now,
			UpdatedAt: now,
		}
		input.Body.apply(a)

		if err := store.Addresses().Create(ctx, a); err != nil {
			return nil, addressWriteError(err, "create")
		}
		return &AddressOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-address",
		Method:      http.MethodGet,
		Path:        "/customer/addresses/{id}",
		Summary:     "Get a delivery address",
		Tags:        []string{"Customer"},
	}, func(ctx context.Context, input *AddressIDInput) (*AddressOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		a, err := ownedAddress(ctx, store, p, input.ID)
		if err != nil {
			return nil, err
		}
		return &AddressOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-address",
		Method:      http.MethodPut,
		Path:        "/customer/addresses/{id}",
		Summary:     "Update a delivery address",
		Tags:        []string{"Customer"},
	}, func(ctx context.Context, input *UpdateAddressInput) (*AddressOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		a, err := ownedAddress(ctx, store, p, input.ID)
		if err != nil {
			return nil, err
		}

		input.Body.apply(a)
		a.UpdatedAt = time.Now()
		if err := store.Addresses().Update(ctx, a); err != nil {
			return nil, addressWriteError(err, "update")
		}
		return &AddressOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-address",
		Method:      http.MethodDelete,
		Path:        "/customer/addresses/{id}",
		Summary:     "Delete a delivery address",
		Tags:        []string{"Customer"},
	}, func(ctx context.Context, input *AddressIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		a, err := ownedAddress(ctx, store, p, input.ID)
		if err != nil {
			return nil, err
		}

		if err := store.Addresses().Delete(ctx, a.ID); err != nil {
			return nil, addressWriteError(err, "delete")
		}
		return nil, nil
	})
}
