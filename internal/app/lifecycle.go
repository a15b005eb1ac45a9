package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/clock"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

// SessionEngine is the slice of the sync engine the lifecycle manager
// drives.
type SessionEngine interface {
	ShiftDate() string
	SwitchShift(shiftDate string) error
	ReplaceSession(s *domain.Session) error
	LastInteraction() time.Time
}

// LifecycleStore is the persistence surface for rollover archival and
// history retrieval.
type LifecycleStore interface {
	GetSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)
	DeleteSession(ctx context.Context, key domain.SessionKey) error
	ListHistory(ctx context.Context, companyID, venueID, excludeShiftDate string, limit int) ([]domain.Session, error)
}

// SeedFunc builds a fresh empty session for a shift.
type SeedFunc func(shiftDate string) *domain.Session

const (
	defaultRolloverInterval    = time.Minute
	defaultInactivityInterval  = time.Minute
	defaultInactivityThreshold = 2 * time.Hour
	defaultHistoryLimit        = 30
)

// Lifecycle creates, retires and archives shift records. Rollover is
// detected by polling the shift clock, not a scheduled job, so a device
// that sleeps through noon still rolls over on its next tick.
type Lifecycle struct {
	engine SessionEngine
	store  LifecycleStore
	clk    clock.Clock
	seed   SeedFunc
	venue  domain.Venue
	log    *zap.Logger

	rolloverInterval    time.Duration
	inactivityInterval  time.Duration
	inactivityThreshold time.Duration
	historyLimit        int

	// onInactive fires once when the inactivity threshold passes; the
	// owner is expected to tear everything down in response.
	onInactive func()
}

type LifecycleOption func(*Lifecycle)

func WithRolloverInterval(d time.Duration) LifecycleOption {
	return func(l *Lifecycle) {
		if d > 0 {
			l.rolloverInterval = d
		}
	}
}

func WithInactivity(threshold time.Duration, onInactive func()) LifecycleOption {
	return func(l *Lifecycle) {
		if threshold > 0 {
			l.inactivityThreshold = threshold
		}
		l.onInactive = onInactive
	}
}

func WithHistoryLimit(n int) LifecycleOption {
	return func(l *Lifecycle) {
		if n > 0 {
			l.historyLimit = n
		}
	}
}

func NewLifecycle(engine SessionEngine, store LifecycleStore, clk clock.Clock, seed SeedFunc, venue domain.Venue, log *zap.Logger, opts ...LifecycleOption) *Lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Lifecycle{
		engine:              engine,
		store:               store,
		clk:                 clk,
		seed:                seed,
		venue:               venue,
		log:                 log.With(zap.String("venue", venue.VenueID)),
		rolloverInterval:    defaultRolloverInterval,
		inactivityInterval:  defaultInactivityInterval,
		inactivityThreshold: defaultInactivityThreshold,
		historyLimit:        defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls for rollover and inactivity until ctx is cancelled.
func (l *Lifecycle) Run(ctx context.Context) {
	rollover := time.NewTicker(l.rolloverInterval)
	defer rollover.Stop()
	inactivity := time.NewTicker(l.inactivityInterval)
	defer inactivity.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rollover.C:
			l.CheckRollover(ctx)
		case <-inactivity.C:
			l.checkInactivity()
		}
	}
}

// CheckRollover compares the engine's active shift against the clock and,
// when the date has moved on, prunes or archives the outgoing shift before
// retargeting the engine. State is read fresh at every invocation; nothing
// is captured across ticks.
func (l *Lifecycle) CheckRollover(ctx context.Context) {
	current := l.engine.ShiftDate()
	now := l.clk.Now()
	if !clock.RolledOver(current, now) {
		return
	}

	newDate := clock.ShiftDate(now)
	l.log.Info("shift rollover detected",
		zap.String("outgoing", current),
		zap.String("incoming", newDate))

	l.pruneIfEmpty(ctx, domain.SessionKey{
		CompanyID: l.venue.CompanyID,
		VenueID:   l.venue.VenueID,
		ShiftDate: current,
	})

	if err := l.engine.SwitchShift(newDate); err != nil {
		l.log.Error("failed to switch engine to new shift", zap.Error(err))
	}
}

// pruneIfEmpty deletes the outgoing shift only when a fresh read shows zero
// activity. The re-read matters: a write may have landed during the rollover
// gap, and deleting it would lose real data. Deletion failures are logged
// and swallowed; a leftover empty record must never block the rollover.
func (l *Lifecycle) pruneIfEmpty(ctx context.Context, key domain.SessionKey) {
	outgoing, err := l.store.GetSession(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			l.log.Warn("could not inspect outgoing shift, leaving it in place", zap.Error(err))
		}
		return
	}
	if !outgoing.IsEmpty() {
		// Real activity: the document stays as the shift's history entry.
		return
	}
	if err := l.store.DeleteSession(ctx, key); err != nil {
		l.log.Warn("failed to prune empty shift", zap.String("shiftDate", key.ShiftDate), zap.Error(err))
	} else {
		l.log.Info("pruned empty shift", zap.String("shiftDate", key.ShiftDate))
	}
}

func (l *Lifecycle) checkInactivity() {
	if l.onInactive == nil {
		return
	}
	idle := l.clk.Now().Sub(l.engine.LastInteraction())
	if idle >= l.inactivityThreshold {
		l.log.Info("inactivity threshold reached, forcing teardown", zap.Duration("idle", idle))
		fire := l.onInactive
		l.onInactive = nil
		fire()
	}
}

// EndShift clears tonight's data: the current document is replaced with a
// freshly seeded session under the same shift date. It does not advance the
// shift identifier; the books stay open.
func (l *Lifecycle) EndShift() error {
	return l.engine.ReplaceSession(l.seed(l.engine.ShiftDate()))
}

// History returns up to the configured number of closed shifts, newest
// first, excluding the active one.
func (l *Lifecycle) History(ctx context.Context) ([]domain.Session, error) {
	return l.store.ListHistory(ctx, l.venue.CompanyID, l.venue.VenueID, l.engine.ShiftDate(), l.historyLimit)
}
