package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/access-service/pkg/database"
)

const revokedKeyPrefix = "revoked:"

// RevocationList remembers revoked token ids in Redis until they would
// have expired anyway
type RevocationList struct {
	redis *database.Redis
}

// NewRevocationList creates a new revocation list
func NewRevocationList(redis *database.Redis) *RevocationList {
	return &RevocationList{redis: redis}
}

// Revoke marks id as revoked for ttl. A non-positive ttl is a no-op.
func (l *RevocationList) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.redis.Client.Set(ctx, revokedKeyPrefix+id, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether id was revoked
func (l *RevocationList) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := l.redis.Client.Exists(ctx, revokedKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation list: %w", err)
	}
	return n > 0, nil
}
