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

type APIKeyRepo struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepo(pool *pgxpool.Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

func (r *APIKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, prefix, created_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.Prefix, key.CreatedBy, key.ExpiresAt, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.Create: %w", mapErr(err))
	}

	return nil
}

func (r *APIKeyRepo) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var k domain.APIKey

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, key_hash, prefix, created_by, last_used_at, expires_at, created_at
		 FROM api_keys WHERE prefix = $1`,
		prefix,
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.Prefix, &k.CreatedBy, &k.LastUsedAt, &k.ExpiresAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("apiKeyRepo.GetByPrefix: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("apiKeyRepo.GetByPrefix: %w", err)
	}

	return &k, nil
}

func (r *APIKeyRepo) List(ctx context.Context) ([]*domain.APIKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, key_hash, prefix, created_by, last_used_at, expires_at, created_at
		 FROM api_keys ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("apiKeyRepo.List: %w", err)
	}
	defer rows.Close()

	keys := []*domain.APIKey{}
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.Prefix, &k.CreatedBy, &k.LastUsedAt, &k.ExpiresAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("apiKeyRepo.List: scan: %w", err)
		}
		keys = append(keys, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("apiKeyRepo.List: rows: %w", err)
	}

	return keys, nil
}

func (r *APIKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("apiKeyRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *APIKeyRepo) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.UpdateLastUsed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("apiKeyRepo.UpdateLastUsed: %w", domain.ErrNotFound)
	}

	return nil
}
