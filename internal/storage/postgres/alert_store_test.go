package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/testutil"
)

func TestAlertStore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewAlertStore(pool)
	alert := domain.NewAlert(storeNow, domain.AlertSOS, "Backup at main door", "main door", "Dana")

	require.NoError(t, store.PublishAlert(ctx, "acme-security", "velvet-room", alert))
	require.NoError(t, store.PublishAlert(ctx, "acme-security", "velvet-room", alert),
		"republishing after a retry is idempotent")

	active, err := store.ListActiveAlerts(ctx, "acme-security", "velvet-room")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, alert.ID, active[0].ID)
	assert.Equal(t, domain.AlertSOS, active[0].Type)
	assert.True(t, active[0].Active)

	t.Run("scoped to the venue", func(t *testing.T) {
		others, err := store.ListActiveAlerts(ctx, "acme-security", "warehouse")
		require.NoError(t, err)
		assert.Empty(t, others)
	})

	t.Run("dismiss deactivates", func(t *testing.T) {
		require.NoError(t, store.DismissAlert(ctx, "acme-security", "velvet-room", alert.ID))

		active, err := store.ListActiveAlerts(ctx, "acme-security", "velvet-room")
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("dismissing an unknown alert", func(t *testing.T) {
		other := domain.NewAlert(storeNow, domain.AlertInfo, "m", "", "Dana")
		err := store.DismissAlert(ctx, "acme-security", "velvet-room", other.ID)
		assert.ErrorIs(t, err, domain.ErrAlertNotFound)
	})

	t.Run("malformed alert id", func(t *testing.T) {
		err := store.DismissAlert(ctx, "acme-security", "velvet-room", "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})
}
