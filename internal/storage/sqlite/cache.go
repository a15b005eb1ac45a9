package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

// SnapshotCache mirrors the last successfully synced session per venue in a
// local sqlite file. It exists purely for offline fallback; the remote
// document remains authoritative whenever reachable.
type SnapshotCache struct {
	db *sql.DB
}

func Open(path string) (*SnapshotCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	// One writer at a time is plenty for a per-device cache.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	venue_id   TEXT PRIMARY KEY,
	shift_date TEXT NOT NULL,
	doc        TEXT NOT NULL,
	synced_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot cache schema: %w", err)
	}
	return &SnapshotCache{db: db}, nil
}

func (c *SnapshotCache) Close() error {
	return c.db.Close()
}

func (c *SnapshotCache) Save(ctx context.Context, venueID string, s *domain.Session) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	const stmt = `
INSERT INTO snapshots (venue_id, shift_date, doc, synced_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (venue_id)
DO UPDATE SET shift_date = excluded.shift_date, doc = excluded.doc, synced_at = CURRENT_TIMESTAMP`

	if _, err := c.db.ExecContext(ctx, stmt, venueID, s.ShiftDate, string(doc)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) Load(ctx context.Context, venueID string) (*domain.Session, error) {
	const query = `SELECT doc FROM snapshots WHERE venue_id = ?`

	var raw string
	err := c.db.QueryRowContext(ctx, query, venueID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &session, nil
}
