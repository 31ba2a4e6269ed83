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

type BranchRepo struct {
	pool *pgxpool.Pool
}

func NewBranchRepo(pool *pgxpool.Pool) *BranchRepo {
	return &BranchRepo{pool: pool}
}

// The admin is whichever user points at the branch.
const branchSelect = `SELECT b.id, b.tenant_id, b.address, b.location, b.is_default, u.id, b.created_at, b.updated_at
	FROM branches b LEFT JOIN users u ON u.branch_id = b.id`

func scanBranch(row pgx.Row) (*domain.Branch, error) {
	var b domain.Branch
	var location *string

	if err := row.Scan(&b.ID, &b.TenantID, &b.Address, &location, &b.IsDefault, &b.AdminID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}

	if location != nil && *location != "" {
		p, err := domain.ParseEWKT(*location)
		if err != nil {
			return nil, err
		}
		b.Location = p
	}
	return &b, nil
}

func locationArg(p *domain.GeoPoint) *string {
	if p == nil {
		return nil
	}
	s := p.EWKT()
	return &s
}

func clearOtherDefaults(ctx context.Context, tx pgx.Tx, b *domain.Branch) error {
	if !b.IsDefault {
		return nil
	}
	_, err := tx.Exec(ctx,
		`UPDATE branches SET is_default = FALSE, updated_at = now()
		 WHERE tenant_id = $1 AND id <> $2 AND is_default`,
		b.TenantID, b.ID,
	)
	return err
}

func (r *BranchRepo) Create(ctx context.Context, b *domain.Branch) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := clearOtherDefaults(ctx, tx, b); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO branches (id, tenant_id, address, location, is_default, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID, b.TenantID, b.Address, locationArg(b.Location), b.IsDefault, b.CreatedAt, b.UpdatedAt,
		)
		return mapErr(err)
	})
	if err != nil {
		return fmt.Errorf("branchRepo.Create: %w", err)
	}

	return nil
}

func (r *BranchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Branch, error) {
	b, err := scanBranch(r.pool.QueryRow(ctx, branchSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("branchRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("branchRepo.GetByID: %w", err)
	}

	return b, nil
}

// ListByTenant returns the tenant's branches, newest first.
func (r *BranchRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Branch, error) {
	branches, err := r.listWhere(ctx, "b.tenant_id = $1", tenantID)
	if err != nil {
		return nil, fmt.Errorf("branchRepo.ListByTenant: %w", err)
	}
	return branches, nil
}

func (r *BranchRepo) listWhere(ctx context.Context, where string, args ...any) ([]*domain.Branch, error) {
	rows, err := r.pool.Query(ctx, branchSelect+` WHERE `+where+` ORDER BY b.created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := []*domain.Branch{}
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return branches, nil
}

func (r *BranchRepo) Update(ctx context.Context, b *domain.Branch) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := clearOtherDefaults(ctx, tx, b); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE branches SET address = $1, location = $2, is_default = $3, updated_at = now()
			 WHERE id = $4`,
			b.Address, locationArg(b.Location), b.IsDefault, b.ID,
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
		return fmt.Errorf("branchRepo.Update: %w", err)
	}

	return nil
}

func (r *BranchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM branches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("branchRepo.Delete: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("branchRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
