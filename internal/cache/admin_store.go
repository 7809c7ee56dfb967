// Package cache holds client-visible state that must outlive a single
// process: admin flags and per-user preference flags, all in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/access-service/internal/admin"
	"github.com/prperemyshlev/access-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

const (
	adminKeyPrefix = "admin:user:"

	adminTrue  = "1"
	adminFalse = "0"
)

// AdminStore persists admin determinations per user id. Negative results
// are only written by ClearAdminStatus, which callers reserve for
// authoritative answers.
type AdminStore struct {
	redis *database.Redis
}

func NewAdminStore(redis *database.Redis) *AdminStore {
	return &AdminStore{redis: redis}
}

// AdminStatus returns the persisted flag; a missing key is StatusUnknown
func (s *AdminStore) AdminStatus(ctx context.Context, userID string) (admin.Status, error) {
	v, err := s.redis.Client.Get(ctx, adminKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return admin.StatusUnknown, nil
	}
	if err != nil {
		return admin.StatusUnknown, fmt.Errorf("failed to read admin status: %w", err)
	}

	switch v {
	case adminTrue:
		return admin.StatusAdmin, nil
	case adminFalse:
		return admin.StatusNotAdmin, nil
	}
	return admin.StatusUnknown, nil
}

// RecordAdminTrue marks the user as admin with no expiry
func (s *AdminStore) RecordAdminTrue(ctx context.Context, userID string) error {
	if err := s.redis.Client.Set(ctx, adminKeyPrefix+userID, adminTrue, 0).Err(); err != nil {
		return fmt.Errorf("failed to record admin status: %w", err)
	}
	return nil
}

// ClearAdminStatus writes an explicit non-admin flag
func (s *AdminStore) ClearAdminStatus(ctx context.Context, userID string) error {
	if err := s.redis.Client.Set(ctx, adminKeyPrefix+userID, adminFalse, 0).Err(); err != nil {
		return fmt.Errorf("failed to clear admin status: %w", err)
	}
	return nil
}
