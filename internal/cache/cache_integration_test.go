//go:build integration

package cache

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/prperemyshlev/access-service/internal/admin"
	"github.com/prperemyshlev/access-service/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *database.Redis {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	r, err := database.NewRedis(context.Background(), addr, "", 15)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestIntegrationAdminStore(t *testing.T) {
	ctx := context.Background()
	store := NewAdminStore(newTestRedis(t))
	userID := uuid.NewString()

	status, err := store.AdminStatus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, admin.StatusUnknown, status)

	require.NoError(t, store.RecordAdminTrue(ctx, userID))
	status, err = store.AdminStatus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, admin.StatusAdmin, status)

	require.NoError(t, store.ClearAdminStatus(ctx, userID))
	status, err = store.AdminStatus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, admin.StatusNotAdmin, status)
}

func TestIntegrationPreferenceStore(t *testing.T) {
	ctx := context.Background()
	store := NewPreferenceStore(newTestRedis(t))
	userID := uuid.NewString()

	prefs, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Preferences{}, prefs)

	require.NoError(t, store.Set(ctx, userID, Preferences{FirstVisitDone: true}))
	prefs, err = store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Preferences{FirstVisitDone: true}, prefs)

	require.NoError(t, store.Set(ctx, userID, Preferences{PopupSilenced: true}))
	prefs, err = store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Preferences{PopupSilenced: true}, prefs)
}
