package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/clock"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

type fakeAlertStore struct {
	published  []domain.Alert
	dismissed  []string
	active     []domain.Alert
	publishErr error
}

func (f *fakeAlertStore) PublishAlert(_ context.Context, _, _ string, a domain.Alert) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, a)
	return nil
}

func (f *fakeAlertStore) DismissAlert(_ context.Context, _, _, alertID string) error {
	f.dismissed = append(f.dismissed, alertID)
	return nil
}

func (f *fakeAlertStore) ListActiveAlerts(_ context.Context, _, _ string) ([]domain.Alert, error) {
	return f.active, nil
}

func TestAlertService_Raise(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 14, 23, 45, 0, 0, time.UTC)

	t.Run("publishes a stamped alert", func(t *testing.T) {
		store := &fakeAlertStore{}
		svc := NewAlertService(store, clock.NewFixed(now), testVenue, nil)

		alert, err := svc.Raise(context.Background(), RaiseAlertInput{
			Type:       domain.AlertSOS,
			Message:    "Backup needed at main door",
			Location:   "main door",
			SenderName: "Dana",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, alert.ID)
		assert.True(t, alert.Active)
		assert.Equal(t, now, alert.Timestamp)
		require.Len(t, store.published, 1)
		assert.Equal(t, alert.ID, store.published[0].ID)
	})

	t.Run("rejects an unknown alert type", func(t *testing.T) {
		store := &fakeAlertStore{}
		svc := NewAlertService(store, clock.NewFixed(now), testVenue, nil)

		_, err := svc.Raise(context.Background(), RaiseAlertInput{Type: "panic", Message: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidAlertType)
		assert.Empty(t, store.published)
	})

	t.Run("refuses without a configured venue", func(t *testing.T) {
		svc := NewAlertService(&fakeAlertStore{}, clock.NewFixed(now), domain.Venue{}, nil)

		_, err := svc.Raise(context.Background(), RaiseAlertInput{Type: domain.AlertInfo, Message: "x"})
		assert.ErrorIs(t, err, domain.ErrNotReady)
	})

	t.Run("propagates store failures", func(t *testing.T) {
		store := &fakeAlertStore{publishErr: errors.New("connection reset")}
		svc := NewAlertService(store, clock.NewFixed(now), testVenue, nil)

		_, err := svc.Raise(context.Background(), RaiseAlertInput{Type: domain.AlertBOLO, Message: "x"})
		assert.Error(t, err)
	})
}

func TestAlertService_DismissAndActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 14, 23, 45, 0, 0, time.UTC)
	store := &fakeAlertStore{active: []domain.Alert{domain.NewAlert(now, domain.AlertInfo, "m", "", "Dana")}}
	svc := NewAlertService(store, clock.NewFixed(now), testVenue, nil)

	require.NoError(t, svc.Dismiss(context.Background(), "alert-1"))
	assert.Equal(t, []string{"alert-1"}, store.dismissed)

	active, err := svc.Active(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
