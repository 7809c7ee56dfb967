package cache

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/access-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

const (
	firstVisitKeyPrefix    = "pref:first_visit:"
	popupSilencedKeyPrefix = "pref:popup_silenced:"
)

// Preferences are simple per-user presence flags
type Preferences struct {
	FirstVisitDone bool `json:"first_visit_done"`
	PopupSilenced  bool `json:"popup_silenced"`
}

// PreferenceStore keeps presence flags in Redis
type PreferenceStore struct {
	redis *database.Redis
}

func NewPreferenceStore(redis *database.Redis) *PreferenceStore {
	return &PreferenceStore{redis: redis}
}

// Get reads both flags; a missing key reads as false
func (s *PreferenceStore) Get(ctx context.Context, userID string) (Preferences, error) {
	n, err := s.redis.Client.Exists(ctx, firstVisitKeyPrefix+userID).Result()
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to read first visit flag: %w", err)
	}

	m, err := s.redis.Client.Exists(ctx, popupSilencedKeyPrefix+userID).Result()
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to read popup flag: %w", err)
	}

	return Preferences{FirstVisitDone: n > 0, PopupSilenced: m > 0}, nil
}

// Set writes or removes both flags atomically
func (s *PreferenceStore) Set(ctx context.Context, userID string, prefs Preferences) error {
	pipe := s.redis.Client.TxPipeline()
	setFlag(ctx, pipe, firstVisitKeyPrefix+userID, prefs.FirstVisitDone)
	setFlag(ctx, pipe, popupSilencedKeyPrefix+userID, prefs.PopupSilenced)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func setFlag(ctx context.Context, w redis.Pipeliner, key string, on bool) {
	if on {
		w.Set(ctx, key, "1", 0)
		return
	}
	w.Del(ctx, key)
}
