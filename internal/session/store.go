// Package session keeps short-lived per-browser state in redis: flash
// messages shown on the next page view, and revoked login tokens.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/plantid/internal/logging"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"

	flashTTL = 10 * time.Minute
)

// Flash is a one-shot notice displayed after a redirect.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// FlashStore queues notices per browser session.
type FlashStore interface {
	PushFlash(ctx context.Context, sessionID string, flash Flash) error
	PopFlashes(ctx context.Context, sessionID string) ([]Flash, error)
}

// RevocationStore remembers tokens invalidated by logout.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisStore implements FlashStore and RevocationStore on go-redis.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger.Named("session_store")}
}

func flashKey(sessionID string) string { return fmt.Sprintf("flash:%s", sessionID) }
func revokedKey(tokenID string) string { return fmt.Sprintf("revoked:%s", tokenID) }

// PushFlash appends flash to the session's queue.
func (s *RedisStore) PushFlash(ctx context.Context, sessionID string, flash Flash) error {
	payload, err := json.Marshal(flash)
	if err != nil {
		return err
	}
	key := flashKey(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, flashTTL)
		return nil
	})
	if err != nil {
		wrapped := logging.NewOperationError("session.push_flash", sessionID, err)
		s.logger.Error("failed to queue flash", zap.Error(wrapped))
		return wrapped
	}
	return nil
}

// PopFlashes returns and clears every queued flash for the session.
func (s *RedisStore) PopFlashes(ctx context.Context, sessionID string) ([]Flash, error) {
	key := flashKey(sessionID)
	var rangeCmd *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, logging.NewOperationError("session.pop_flashes", sessionID, err)
	}

	raw := rangeCmd.Val()
	flashes := make([]Flash, 0, len(raw))
	for _, item := range raw {
		var f Flash
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			s.logger.Warn("dropping undecodable flash", zap.Error(err))
			continue
		}
		flashes = append(flashes, f)
	}
	return flashes, nil
}

// Revoke marks tokenID as unusable for ttl, which should cover the token's
// remaining lifetime.
func (s *RedisStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return logging.NewOperationError("session.revoke", tokenID, err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked.
func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, logging.NewOperationError("session.is_revoked", tokenID, err)
	}
	return n > 0, nil
}
