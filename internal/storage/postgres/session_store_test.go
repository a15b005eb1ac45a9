package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/testutil"
)

var storeNow = time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)

func testKey(shiftDate string) domain.SessionKey {
	return domain.SessionKey{CompanyID: "acme-security", VenueID: "velvet-room", ShiftDate: shiftDate}
}

func seedSession(shiftDate string) *domain.Session {
	return domain.NewSession(shiftDate, "The Velvet Room", 450, []string{"Fire exits clear"}, []string{"Venue empty"})
}

func TestSessionStore_PutGet(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewSessionStore(pool)
	key := testKey("2024-03-14")

	_, err := store.GetSession(ctx, key)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	s := seedSession("2024-03-14")
	s.Increment(storeNow)
	require.NoError(t, store.PutSession(ctx, key, s))

	got, err := store.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentCapacity)
	assert.Equal(t, "The Velvet Room", got.VenueName)
	require.Len(t, got.Logs, 1)

	s.Increment(storeNow)
	require.NoError(t, store.PutSession(ctx, key, s), "put overwrites an existing document")
	got, err = store.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentCapacity)
}

func TestSessionStore_MergeFields(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewSessionStore(pool)
	key := testKey("2024-03-14")

	err := store.MergeFields(ctx, key, map[string]any{domain.FieldCurrentCapacity: 7})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	s := seedSession("2024-03-14")
	s.RecordPatrol(storeNow, "smoking area")
	require.NoError(t, store.PutSession(ctx, key, s))

	require.NoError(t, store.MergeFields(ctx, key, map[string]any{
		domain.FieldCurrentCapacity: 7,
		domain.FieldMaxCapacity:     500,
	}))

	got, err := store.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentCapacity)
	assert.Equal(t, 500, got.MaxCapacity)
	assert.Len(t, got.PatrolLogs, 1, "untouched fields survive a merge")
}

func TestSessionStore_AppendEvents(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewSessionStore(pool)
	key := testKey("2024-03-14")
	require.NoError(t, store.PutSession(ctx, key, seedSession("2024-03-14")))

	first := []domain.CapacityEvent{{Timestamp: storeNow, Direction: domain.DirectionIn, Count: 1}}
	second := []domain.CapacityEvent{
		{Timestamp: storeNow, Direction: domain.DirectionIn, Count: 1},
		{Timestamp: storeNow, Direction: domain.DirectionOut, Count: 1},
	}
	require.NoError(t, store.AppendEvents(ctx, key, domain.FieldLogs, first))
	require.NoError(t, store.AppendEvents(ctx, key, domain.FieldLogs, second))

	got, err := store.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got.Logs, 3, "appends union, they never clobber")
	assert.Equal(t, 2, domain.SumByDirection(got.Logs, domain.DirectionIn))

	t.Run("unknown field is rejected before touching SQL", func(t *testing.T) {
		err := store.AppendEvents(ctx, key, "doc'; DROP TABLE sessions; --", first)
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("missing document", func(t *testing.T) {
		err := store.AppendEvents(ctx, testKey("2024-01-01"), domain.FieldLogs, first)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestSessionStore_ReplaceField(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewSessionStore(pool)
	key := testKey("2024-03-14")

	s := seedSession("2024-03-14")
	s.RecordEjection(storeNow, domain.NewEjectionEvent(storeNow, "fight", "", false, false, nil))
	s.RecordEjection(storeNow, domain.NewEjectionEvent(storeNow, "theft", "", true, false, nil))
	require.NoError(t, store.PutSession(ctx, key, s))

	kept := s.Ejections[:1]
	require.NoError(t, store.ReplaceField(ctx, key, domain.FieldEjections, kept))

	got, err := store.GetSession(ctx, key)
	require.NoError(t, err)
	require.Len(t, got.Ejections, 1)
	assert.Equal(t, "fight", got.Ejections[0].Description)
}

func TestSessionStore_DeleteSession(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewSessionStore(pool)
	key := testKey("2024-03-14")
	require.NoError(t, store.PutSession(ctx, key, seedSession("2024-03-14")))

	require.NoError(t, store.DeleteSession(ctx, key))
	_, err := store.GetSession(ctx, key)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, store.DeleteSession(ctx, key), "deleting a missing document is a no-op")
}

func TestSessionStore_ListHistory(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewSessionStore(pool)
	for _, date := range []string{"2024-03-11", "2024-03-12", "2024-03-13", "2024-03-14"} {
		testutil.InsertSession(t, ctx, pool, "acme-security", "velvet-room", seedSession(date))
	}
	// Another venue's shifts must not leak in.
	testutil.InsertSession(t, ctx, pool, "acme-security", "warehouse", seedSession("2024-03-13"))

	shifts, err := store.ListHistory(ctx, "acme-security", "velvet-room", "2024-03-14", 2)
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.Equal(t, "2024-03-13", shifts[0].ShiftDate, "newest first")
	assert.Equal(t, "2024-03-12", shifts[1].ShiftDate)
}

func TestSessionStore_Watch(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	store := NewSessionStore(pool)
	key := testKey("2024-03-14")
	require.NoError(t, store.PutSession(ctx, key, seedSession("2024-03-14")))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots := make(chan *domain.Session, 8)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(watchCtx, key, func(s *domain.Session) {
			snapshots <- s
		})
	}()

	// Initial snapshot arrives before any write.
	select {
	case s := <-snapshots:
		assert.Equal(t, 0, s.CurrentCapacity)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot")
	}

	updated := seedSession("2024-03-14")
	updated.SyncBulkCounts(storeNow, 30, 5)
	require.NoError(t, store.PutSession(ctx, key, updated))

	select {
	case s := <-snapshots:
		assert.Equal(t, 25, s.CurrentCapacity)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot after write")
	}

	// A write to a different shift is filtered out, then cancellation ends
	// the watch cleanly.
	require.NoError(t, store.PutSession(ctx, testKey("2024-03-15"), seedSession("2024-03-15")))
	select {
	case s := <-snapshots:
		t.Fatalf("unexpected snapshot for foreign shift: %s", s.ShiftDate)
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on cancellation")
	}
}
