package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/clock"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

type AlertStore interface {
	PublishAlert(ctx context.Context, companyID, venueID string, a domain.Alert) error
	DismissAlert(ctx context.Context, companyID, venueID, alertID string) error
	ListActiveAlerts(ctx context.Context, companyID, venueID string) ([]domain.Alert, error)
}

// AlertService manages cross-device venue alerts. Alerts belong to the
// venue, not the shift: an SOS raised before midnight is still live at 1am.
type AlertService struct {
	store AlertStore
	clk   clock.Clock
	venue domain.Venue
	log   *zap.Logger
}

func NewAlertService(store AlertStore, clk clock.Clock, venue domain.Venue, log *zap.Logger) *AlertService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AlertService{store: store, clk: clk, venue: venue, log: log}
}

type RaiseAlertInput struct {
	Type       domain.AlertType
	Message    string
	Location   string
	SenderName string
}

func (s *AlertService) Raise(ctx context.Context, in RaiseAlertInput) (domain.Alert, error) {
	switch in.Type {
	case domain.AlertSOS, domain.AlertBOLO, domain.AlertInfo:
	default:
		return domain.Alert{}, domain.ErrInvalidAlertType
	}
	if !s.venue.Ready() {
		return domain.Alert{}, domain.ErrNotReady
	}

	alert := domain.NewAlert(s.clk.Now(), in.Type, in.Message, in.Location, in.SenderName)
	if err := s.store.PublishAlert(ctx, s.venue.CompanyID, s.venue.VenueID, alert); err != nil {
		return domain.Alert{}, err
	}
	s.log.Info("alert raised",
		zap.String("type", string(in.Type)),
		zap.String("alert", alert.ID))
	return alert, nil
}

func (s *AlertService) Dismiss(ctx context.Context, alertID string) error {
	return s.store.DismissAlert(ctx, s.venue.CompanyID, s.venue.VenueID, alertID)
}

func (s *AlertService) Active(ctx context.Context) ([]domain.Alert, error) {
	return s.store.ListActiveAlerts(ctx, s.venue.CompanyID, s.venue.VenueID)
}
