package sync

import (
	"context"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

// Store is the remote realtime document store, one session document per
// (company, venue, shiftDate).
//
// Writes come in three declared kinds with different concurrency contracts:
// AppendEvents unions new events into a sequence and is safe to race across
// devices; MergeFields is a partial scalar update with last-writer-wins;
// ReplaceField overwrites a whole field and can resurrect entries deleted
// by a concurrent writer. Operations that need ReplaceField (clicker reset,
// entry deletion, checklist toggles) accept that.
type Store interface {
	// GetSession returns ErrSessionNotFound when no document exists.
	GetSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)
	// PutSession writes the full document, creating or overwriting it.
	PutSession(ctx context.Context, key domain.SessionKey, s *domain.Session) error
	MergeFields(ctx context.Context, key domain.SessionKey, fields map[string]any) error
	AppendEvents(ctx context.Context, key domain.SessionKey, field string, events any) error
	ReplaceField(ctx context.Context, key domain.SessionKey, field string, value any) error
	DeleteSession(ctx context.Context, key domain.SessionKey) error

	// Watch blocks delivering full-document snapshots to onSnapshot until
	// ctx is cancelled or the subscription fails. Cancelling ctx is the
	// unsubscribe; a stale watch writing into an abandoned session is a
	// correctness bug, not just a leak.
	Watch(ctx context.Context, key domain.SessionKey, onSnapshot func(*domain.Session)) error
}

// SnapshotCache is the local-only fallback mirror of the last successfully
// synced session, keyed by venue.
type SnapshotCache interface {
	Load(ctx context.Context, venueID string) (*domain.Session, error)
	Save(ctx context.Context, venueID string, s *domain.Session) error
}
