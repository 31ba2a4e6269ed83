package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minmin-app/minmin/internal/domain"
)

type AddressRepo struct {
	pool *pgxpool.Pool
}

func NewAddressRepo(pool *pgxpool.Pool) *AddressRepo {
	return &AddressRepo{pool: pool}
}

const addressColumns = `id, user_id, address_line, gps_coordinates, label, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	if err := row.Scan(&a.ID, &a.UserID, &a.AddressLine, &a.GPSCoordinates, &a.Label, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func clearOtherAddressDefaults(ctx context.Context, tx pgx.Tx, a *domain.Address) error {
	if !a.IsDefault {
		return nil
	}
	_, err := tx.Exec(ctx,
		`UPDATE addresses SET is_default = FALSE, updated_at = now()
		 WHERE user_id = $1 AND id <> $2 AND is_default`,
		a.UserID, a.ID,
	)
	return err
}

func (r *AddressRepo) Create(ctx context.Context, a *domain.Address) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := clearOtherAddressDefaults(ctx, tx, a); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO addresses (`+addressColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.ID, a.UserID, a.AddressLine, a.GPSCoordinates, a.Label, a.IsDefault, a.CreatedAt, a.UpdatedAt,
		)
		return mapErr(err)
	})
	if err != nil {
		return fmt.Errorf("addressRepo.Create: %w", err)
	}

	return nil
}

func (r *AddressRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	a, err := scanAddress(r.pool.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("addressRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("addressRepo.GetByID: %w", err)
	}

	return a, nil
}

func (r *AddressRepo) List(ctx context.Context) ([]*domain.Address, error) {
	return r.list(ctx, "addressRepo.List", `SELECT `+addressColumns+` FROM addresses ORDER BY created_at DESC`)
}

func (r *AddressRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	return r.list(ctx, "addressRepo.ListByUser",
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *AddressRepo) list(ctx context.Context, caller, query string, args ...any) ([]*domain.Address, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	defer rows.Close()

	addresses := []*domain.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return addresses, nil
}

func (r *AddressRepo) Update(ctx context.Context, a *domain.Address) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := clearOtherAddressDefaults(ctx, tx, a); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE addresses SET address_line = $1, gps_coordinates = $2, label = $3, is_default = $4, updated_at = now()
			 WHERE id = $5`,
			a.AddressLine, a.GPSCoordinates, a.Label, a.IsDefault, a.ID,
		)
		if err != nil {
			return mapErr(err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("addressRepo.Update: %w", err)
	}

	return nil
}

func (r *AddressRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("addressRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("addressRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
