package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

const sessionChannel = "session_changed"

// SessionStore keeps one JSONB document per (company, venue, shift_date).
// A row trigger issues pg_notify on every write; Watch listens on that
// channel and re-fetches the document, which gives subscribers full
// snapshots rather than deltas.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) GetSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	const query = `SELECT doc FROM sessions WHERE company_id = $1 AND venue_id = $2 AND shift_date = $3`

	var raw []byte
	err := s.pool.QueryRow(ctx, query, key.CompanyID, key.VenueID, key.ShiftDate).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session doc: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) PutSession(ctx context.Context, key domain.SessionKey, session *domain.Session) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session doc: %w", err)
	}

	const stmt = `
INSERT INTO sessions (company_id, venue_id, shift_date, doc, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (company_id, venue_id, shift_date)
DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, stmt, key.CompanyID, key.VenueID, key.ShiftDate, doc); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// MergeFields applies a partial update: only the given top-level keys are
// touched, so concurrent writers' other fields survive. Last writer wins
// per field.
func (s *SessionStore) MergeFields(ctx context.Context, key domain.SessionKey, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode field patch: %w", err)
	}

	const stmt = `
UPDATE sessions
SET doc = doc || $4::jsonb, updated_at = NOW()
WHERE company_id = $1 AND venue_id = $2 AND shift_date = $3`

	tag, err := s.pool.Exec(ctx, stmt, key.CompanyID, key.VenueID, key.ShiftDate, patch)
	if err != nil {
		return fmt.Errorf("merge fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AppendEvents unions new events onto an array field. Concurrent appends
// from multiple devices both survive; this is the only write mode that is
// race-safe for event sequences.
func (s *SessionStore) AppendEvents(ctx context.Context, key domain.SessionKey, field string, events any) error {
	if err := validateField(field); err != nil {
		return err
	}
	encoded, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	stmt := fmt.Sprintf(`
UPDATE sessions
SET doc = jsonb_set(doc, '{%s}', COALESCE(doc->'%s', '[]'::jsonb) || $4::jsonb),
    updated_at = NOW()
WHERE company_id = $1 AND venue_id = $2 AND shift_date = $3`, field, field)

	tag, err := s.pool.Exec(ctx, stmt, key.CompanyID, key.VenueID, key.ShiftDate, encoded)
	if err != nil {
		return fmt.Errorf("append %s: %w", field, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// ReplaceField overwrites one whole field. Not race-safe: a concurrent
// append between the caller's read and this write is lost. Reserved for
// clicker resets, entry deletion and checklist toggles.
func (s *SessionStore) ReplaceField(ctx context.Context, key domain.SessionKey, field string, value any) error {
	if err := validateField(field); err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field value: %w", err)
	}

	stmt := fmt.Sprintf(`
UPDATE sessions
SET doc = jsonb_set(doc, '{%s}', $4::jsonb), updated_at = NOW()
WHERE company_id = $1 AND venue_id = $2 AND shift_date = $3`, field)

	tag, err := s.pool.Exec(ctx, stmt, key.CompanyID, key.VenueID, key.ShiftDate, encoded)
	if err != nil {
		return fmt.Errorf("replace %s: %w", field, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, key domain.SessionKey) error {
	const stmt = `DELETE FROM sessions WHERE company_id = $1 AND venue_id = $2 AND shift_date = $3`
	if _, err := s.pool.Exec(ctx, stmt, key.CompanyID, key.VenueID, key.ShiftDate); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListHistory returns closed shifts newest-first, excluding the active one.
func (s *SessionStore) ListHistory(ctx context.Context, companyID, venueID, excludeShiftDate string, limit int) ([]domain.Session, error) {
	const query = `
SELECT doc FROM sessions
WHERE company_id = $1 AND venue_id = $2 AND shift_date <> $3
ORDER BY shift_date DESC
LIMIT $4`

	rows, err := s.pool.Query(ctx, query, companyID, venueID, excludeShiftDate, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var session domain.Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, fmt.Errorf("decode history doc: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

// Watch delivers a snapshot now and again after every notified change,
// until ctx is cancelled. The LISTEN connection is dedicated; pool
// connections cannot be shared while listening.
func (s *SessionStore) Watch(ctx context.Context, key domain.SessionKey, onSnapshot func(*domain.Session)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `LISTEN `+sessionChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// Initial snapshot so a subscriber never starts blind.
	if session, err := s.GetSession(ctx, key); err == nil {
		onSnapshot(session)
	} else if err != domain.ErrSessionNotFound {
		return err
	}

	want := notifyPayload(key)
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		if notification.Payload != want {
			continue
		}
		session, err := s.GetSession(ctx, key)
		if err != nil {
			if err == domain.ErrSessionNotFound {
				// Pruned by rollover; nothing to deliver.
				continue
			}
			return err
		}
		onSnapshot(session)
	}
}

func notifyPayload(key domain.SessionKey) string {
	return key.CompanyID + "|" + key.VenueID + "|" + key.ShiftDate
}

// validateField guards the jsonb path interpolation; only known document
// fields may be addressed.
func validateField(field string) error {
	switch field {
	case domain.FieldLogs, domain.FieldEjections, domain.FieldRejections,
		domain.FieldPeriodicLogs, domain.FieldPatrolLogs,
		domain.FieldPreEventChecks, domain.FieldPostEventChecks,
		domain.FieldBriefing:
		return nil
	}
	return domain.ErrInvalidID
}
