package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

type AlertStore struct {
	pool *pgxpool.Pool
}

func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

func (s *AlertStore) PublishAlert(ctx context.Context, companyID, venueID string, a domain.Alert) error {
	const stmt = `
INSERT INTO alerts (id, company_id, venue_id, type, message, location, sender, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, stmt,
		a.ID, companyID, venueID, a.Type, a.Message, a.Location, a.SenderName, a.Active, a.Timestamp)
	if err != nil {
		if isUniqueViolation(err) {
			// Same alert republished after a retry; already delivered.
			return nil
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (s *AlertStore) DismissAlert(ctx context.Context, companyID, venueID, alertID string) error {
	const stmt = `
UPDATE alerts SET active = FALSE
WHERE id = $1 AND company_id = $2 AND venue_id = $3`

	tag, err := s.pool.Exec(ctx, stmt, alertID, companyID, venueID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("dismiss alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

func (s *AlertStore) ListActiveAlerts(ctx context.Context, companyID, venueID string) ([]domain.Alert, error) {
	const query = `
SELECT id, type, message, location, sender, active, created_at
FROM alerts
WHERE company_id = $1 AND venue_id = $2 AND active
ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, companyID, venueID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.Type, &a.Message, &a.Location, &a.SenderName, &a.Active, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
