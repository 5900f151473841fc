package provisioning

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
	"github.com/nerrad567/shadowsync/internal/infrastructure/database"
	"github.com/nerrad567/shadowsync/migrations"
)

// newTestStore opens a migrated database in a temp dir.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "device.db"),
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(ctx, migrations.FS))
	return NewStore(db.DB)
}

func TestStore_GetUnset(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), KeyThingName)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyThingName, "porch-light"))
	got, err := s.Get(ctx, KeyThingName)
	require.NoError(t, err)
	assert.Equal(t, "porch-light", got)

	require.NoError(t, s.Set(ctx, KeyThingName, "garage-light"))
	got, err = s.Get(ctx, KeyThingName)
	require.NoError(t, err)
	assert.Equal(t, "garage-light", got)
}

func TestStore_UnknownKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, "wifi_password", "x"), ErrUnknownKey)
	_, err := s.Get(ctx, "wifi_password")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.ErrorIs(t, s.Delete(ctx, "wifi_password"), ErrUnknownKey)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyRegion, "eu-west-1"))
	require.NoError(t, s.Delete(ctx, KeyRegion))

	_, err := s.Get(ctx, KeyRegion)
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.NoError(t, s.Delete(ctx, KeyRegion), "deleting an unset key")
}

func TestStore_ListAndReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Set(ctx, KeyThingName, "porch-light"))
	require.NoError(t, s.Set(ctx, KeyClientID, "shadowsync-0a1b2c3d4e5f"))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KeyClientID, entries[0].Key)
	assert.Equal(t, KeyThingName, entries[1].Key)
	assert.Equal(t, "porch-light", entries[1].Value)
	assert.True(t, entries[1].UpdatedAt.Equal(fixed))

	require.NoError(t, s.Reset(ctx))
	entries, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
