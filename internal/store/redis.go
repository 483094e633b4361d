package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// SessionRevocations remembers logged-out session ids until they would have
// expired anyway.
type SessionRevocations struct {
	rdb redis.Cmdable
}

func NewSessionRevocations(rdb redis.Cmdable) *SessionRevocations {
	return &SessionRevocations{rdb: rdb}
}

func revokedKey(sessionID string) string {
	return "session:revoked:" + sessionID
}

// Revoke marks sessionID as ended for ttl.
func (s *SessionRevocations) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKey(sessionID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether sessionID was ended.
func (s *SessionRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	err := s.rdb.Get(ctx, revokedKey(sessionID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis check session: %w", err)
	}
	return true, nil
}
