package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/domain"
)

// ErrInvalidAPIKey is returned when a client key is unknown, expired or does
// not match its stored hash.
var ErrInvalidAPIKey = errors.New("auth: invalid API key")

const (
	apiKeyPrefix    = "mm_"
	apiKeyRandLen   = 16 // 16 bytes = 32 hex chars
	apiKeyPrefixLen = 11 // "mm_" + 8 hex chars, used for lookup
)

// GenerateAPIKey creates a new client key, stores the SHA-256 hash, and
// returns the raw key (shown once). Key format: "mm_" + 32 random hex chars.
func (s *Service) GenerateAPIKey(ctx context.Context, createdBy uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: name: %w", domain.ErrInvalidInput)
	}

	raw := make([]byte, apiKeyRandLen)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	rawKey := apiKeyPrefix + hex.EncodeToString(raw)

	key := &domain.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   sha256Hex(rawKey),
		Prefix:    rawKey[:apiKeyPrefixLen],
		CreatedBy: createdBy,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}

	if err := s.repos.APIKeys.Create(ctx, key); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	return rawKey, key, nil
}

// ListAPIKeys returns every stored client key (hashes are never serialised).
func (s *Service) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	keys, err := s.repos.APIKeys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth.ListAPIKeys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey deletes a client key.
func (s *Service) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.APIKeys.Delete(ctx, id); err != nil {
		return fmt.Errorf("auth.RevokeAPIKey: %w", err)
	}
	return nil
}

// ValidateClientKey accepts either one of the statically configured keys or
// a database key issued by GenerateAPIKey.
func (s *Service) ValidateClientKey(ctx context.Context, rawKey string) error {
	if rawKey == "" {
		return fmt.Errorf("auth.ValidateClientKey: %w", ErrInvalidAPIKey)
	}

	for _, k := range s.cfg.StaticAPIKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(rawKey)) == 1 {
			return nil
		}
	}

	if !strings.HasPrefix(rawKey, apiKeyPrefix) || len(rawKey) < apiKeyPrefixLen || s.repos.APIKeys == nil {
		return fmt.Errorf("auth.ValidateClientKey: %w", ErrInvalidAPIKey)
	}

	key, err := s.repos.APIKeys.GetByPrefix(ctx, rawKey[:apiKeyPrefixLen])
	if err != nil {
		return fmt.Errorf("auth.ValidateClientKey: %w", ErrInvalidAPIKey)
	}

	if !hashMatches(rawKey, key.KeyHash) {
		return fmt.Errorf("auth.ValidateClientKey: %w", ErrInvalidAPIKey)
	}

	if key.ExpiresAt != nil && key.ExpiresAt.Before(s.now()) {
		return fmt.Errorf("auth.ValidateClientKey: key expired: %w", ErrInvalidAPIKey)
	}

	if err := s.repos.APIKeys.UpdateLastUsed(ctx, key.ID); err != nil {
		log.Warn().Err(err).Str("api_key_id", key.ID.String()).Msg("auth.ValidateClientKey: failed to update last_used_at")
	}

	return nil
}
