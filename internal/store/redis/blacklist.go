package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "token:blacklist:"

// TokenBlacklist revokes JWTs before they expire. Single tokens are keyed by
// their jti; a password reset stores a per-user cut-off timestamp.
type TokenBlacklist struct {
	rdb *redis.Client
}

func (c *Client) Blacklist() *TokenBlacklist {
	return &TokenBlacklist{rdb: c.rdb}
}

func jtiKey(jti string) string     { return blacklistPrefix + "jti:" + jti }
func userKey(userID string) string { return blacklistPrefix + "user:" + userID }

// AddToBlacklist revokes one token. ttl should be the token's remaining lifetime.
func (b *TokenBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis.TokenBlacklist.AddToBlacklist: %w", err)
	}
	return nil
}

func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis.TokenBlacklist.IsBlacklisted: %w", err)
	}
	return n > 0, nil
}

// AddUserTokensToBlacklist revokes every token issued to the user before now.
// ttl should cover the longest token lifetime.
func (b *TokenBlacklist) AddUserTokensToBlacklist(ctx context.Context, userID string, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, userKey(userID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("redis.TokenBlacklist.AddUserTokensToBlacklist: %w", err)
	}
	return nil
}

// IsUserTokenInvalidated reports whether issuedAt falls before the user's
// cut-off. JWT timestamps have second precision, so a token issued in the
// same second as the cut-off stays valid.
func (b *TokenBlacklist) IsUserTokenInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := b.rdb.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis.TokenBlacklist.IsUserTokenInvalidated: %w", err)
	}

	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("redis.TokenBlacklist.IsUserTokenInvalidated: parse %q: %w", raw, err)
	}

	return issuedAt.Unix() < cutoff, nil
}
