package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/clock"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

type State string

const (
	StateConnecting   State = "connecting"
	StateLive         State = "live"
	StateDisconnected State = "disconnected"
	StateTornDown     State = "torn_down"
)

const (
	remoteWriteTimeout = 10 * time.Second
	reconnectDelay     = 5 * time.Second
	writeQueueSize     = 256
)

// SeedFunc builds a fresh empty session for a shift from venue defaults.
type SeedFunc func(shiftDate string) *domain.Session

// Engine keeps one venue's live session consistent with the remote store
// across devices while staying usable offline.
//
// Every mutation applies to the in-memory session first, then a remote
// write is attempted asynchronously. Remote failures are logged and never
// rolled back: the door counter keeps working and reconciles when
// connectivity returns. While LIVE, remote snapshots replace local state
// wholesale; the remote document is authoritative whenever reachable.
type Engine struct {
	store Store
	cache SnapshotCache
	clk   clock.Clock
	log   *zap.Logger
	seed  SeedFunc
	venue domain.Venue

	mu        gosync.Mutex
	state     State
	key       domain.SessionKey
	session   *domain.Session
	subs      map[int]chan *domain.Session
	nextSub   int
	lastTouch time.Time

	runCtx      context.Context
	cancel      context.CancelFunc
	watchCancel context.CancelFunc
	writes      chan writeOp
	wg          gosync.WaitGroup
}

type writeKind int

const (
	writeAppend writeKind = iota
	writeMerge
	writeReplace
	writePut
)

type writeOp struct {
	kind  writeKind
	key   domain.SessionKey
	field string
	value any
	doc   *domain.Session
}

func NewEngine(store Store, cache SnapshotCache, clk clock.Clock, seed SeedFunc, venue domain.Venue, log *zap.Logger) (*Engine, error) {
	if !venue.Ready() {
		return nil, domain.ErrNotReady
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store: store,
		cache: cache,
		clk:   clk,
		log:   log.With(zap.String("venue", venue.VenueID)),
		seed:  seed,
		venue: venue,
		state: StateConnecting,
		subs:  map[int]chan *domain.Session{},
	}, nil
}

// Start subscribes to the current shift's document and launches the write
// pump. It returns immediately; connection state is observable via State.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateTornDown {
		return domain.ErrTornDown
	}
	if e.cancel != nil {
		return errors.New("engine already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx = runCtx
	e.cancel = cancel
	e.key = domain.SessionKey{
		CompanyID: e.venue.CompanyID,
		VenueID:   e.venue.VenueID,
		ShiftDate: clock.ShiftDate(e.clk.Now()),
	}
	e.lastTouch = e.clk.Now()
	e.writes = make(chan writeOp, writeQueueSize)

	e.wg.Add(1)
	go e.writePump(runCtx)
	e.startWatchLocked()
	return nil
}

// Close tears the engine down: the subscription is cancelled, queued writes
// are abandoned, and no further mutations are accepted.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.state == StateTornDown {
		e.mu.Unlock()
		return
	}
	e.state = StateTornDown
	cancel := e.cancel
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// SwitchShift retargets the engine to a new shift date after rollover: the
// old subscription is cancelled and a fresh one opened for the new key.
func (e *Engine) SwitchShift(shiftDate string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateTornDown {
		return domain.ErrTornDown
	}
	if e.runCtx == nil {
		return errors.New("engine not started")
	}
	if e.key.ShiftDate == shiftDate {
		return nil
	}
	if e.watchCancel != nil {
		e.watchCancel()
		e.watchCancel = nil
	}
	e.key.ShiftDate = shiftDate
	e.session = nil
	e.state = StateConnecting
	e.startWatchLocked()
	return nil
}

func (e *Engine) startWatchLocked() {
	watchCtx, cancel := context.WithCancel(e.runCtx)
	e.watchCancel = cancel
	key := e.key
	e.wg.Add(1)
	go e.watchLoop(watchCtx, key)
}

func (e *Engine) watchLoop(ctx context.Context, key domain.SessionKey) {
	defer e.wg.Done()
	for {
		if err := e.connect(ctx, key); err != nil && ctx.Err() == nil {
			e.log.Warn("realtime subscription lost, falling back to cache",
				zap.String("shiftDate", key.ShiftDate), zap.Error(err))
			e.fallbackToCache(ctx, key)
			recordSyncDisconnect()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// connect ensures the session document exists, then blocks on the watch.
func (e *Engine) connect(ctx context.Context, key domain.SessionKey) error {
	getCtx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
	remote, err := e.store.GetSession(getCtx, key)
	cancel()
	if errors.Is(err, domain.ErrSessionNotFound) {
		fresh := e.seed(key.ShiftDate)
		putCtx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
		err = e.store.PutSession(putCtx, key, fresh)
		cancel()
		if err != nil {
			return err
		}
		remote = fresh
	} else if err != nil {
		return err
	}

	e.applySnapshot(ctx, key, remote)
	return e.store.Watch(ctx, key, func(s *domain.Session) {
		e.applySnapshot(ctx, key, s)
	})
}

// applySnapshot replaces local state with the authoritative remote document
// and mirrors it into the offline cache.
func (e *Engine) applySnapshot(ctx context.Context, key domain.SessionKey, s *domain.Session) {
	e.mu.Lock()
	if e.state == StateTornDown || e.key != key {
		e.mu.Unlock()
		return
	}
	e.state = StateLive
	e.session = s.Clone()
	snap := e.session.Clone()
	e.notifyLocked(snap)
	e.mu.Unlock()

	if e.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
		if err := e.cache.Save(cacheCtx, key.VenueID, s); err != nil {
			e.log.Warn("snapshot cache write failed", zap.Error(err))
		}
		cancel()
	}
	setCapacityGauge(key.VenueID, snap.CurrentCapacity)
}

// fallbackToCache serves the most recent synced snapshot while offline, but
// only if it belongs to the shift we expect; stale data from a previous
// shift is worse than an empty board.
func (e *Engine) fallbackToCache(ctx context.Context, key domain.SessionKey) {
	var cached *domain.Session
	if e.cache != nil {
		loadCtx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
		s, err := e.cache.Load(loadCtx, key.VenueID)
		cancel()
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			e.log.Warn("snapshot cache read failed", zap.Error(err))
		}
		cached = s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateTornDown || e.key != key {
		return
	}
	e.state = StateDisconnected
	if e.session != nil {
		// Keep the optimistic in-memory state we already have.
		return
	}
	if cached != nil && cached.ShiftDate == key.ShiftDate {
		e.session = cached.Clone()
	} else {
		e.session = e.seed(key.ShiftDate)
	}
	e.notifyLocked(e.session.Clone())
}

func (e *Engine) writePump(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-e.writes:
			e.execWrite(ctx, op)
		}
	}
}

func (e *Engine) execWrite(ctx context.Context, op writeOp) {
	wctx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
	defer cancel()

	var err error
	switch op.kind {
	case writeAppend:
		err = e.store.AppendEvents(wctx, op.key, op.field, op.value)
	case writeMerge:
		err = e.store.MergeFields(wctx, op.key, op.value.(map[string]any))
	case writeReplace:
		err = e.store.ReplaceField(wctx, op.key, op.field, op.value)
	case writePut:
		err = e.store.PutSession(wctx, op.key, op.doc)
	}
	if err != nil {
		// Optimistic local state stands; the document reconciles on the
		// next successful snapshot.
		e.log.Warn("remote write failed",
			zap.String("shiftDate", op.key.ShiftDate),
			zap.String("field", op.field),
			zap.Error(err))
		recordSyncWriteFailure()
	}
}

func (e *Engine) enqueue(op writeOp) {
	select {
	case e.writes <- op:
	default:
		e.log.Warn("write queue full, dropping remote write", zap.String("field", op.field))
		recordSyncWriteFailure()
	}
}

// queueChange translates an aggregate change report into remote writes.
// Appends go out as array unions; merged scalars as partial updates;
// replaced fields as whole-field overwrites.
func (e *Engine) queueChange(key domain.SessionKey, ch domain.Change, lastUpdated time.Time) {
	if len(ch.AppendedLogs) > 0 {
		e.enqueue(writeOp{kind: writeAppend, key: key, field: domain.FieldLogs, value: ch.AppendedLogs})
	}
	if len(ch.AppendedEjections) > 0 {
		e.enqueue(writeOp{kind: writeAppend, key: key, field: domain.FieldEjections, value: ch.AppendedEjections})
	}
	if len(ch.AppendedRejections) > 0 {
		e.enqueue(writeOp{kind: writeAppend, key: key, field: domain.FieldRejections, value: ch.AppendedRejections})
	}
	if len(ch.AppendedPeriodic) > 0 {
		e.enqueue(writeOp{kind: writeAppend, key: key, field: domain.FieldPeriodicLogs, value: ch.AppendedPeriodic})
	}
	if len(ch.AppendedPatrols) > 0 {
		e.enqueue(writeOp{kind: writeAppend, key: key, field: domain.FieldPatrolLogs, value: ch.AppendedPatrols})
	}
	for field, value := range ch.ReplacedFields {
		e.enqueue(writeOp{kind: writeReplace, key: key, field: field, value: value})
	}
	if len(ch.MergedFields) > 0 || len(ch.ReplacedFields) > 0 || hasAppends(ch) {
		merged := map[string]any{domain.FieldLastUpdated: lastUpdated}
		for field, value := range ch.MergedFields {
			merged[field] = value
		}
		e.enqueue(writeOp{kind: writeMerge, key: key, field: "", value: merged})
	}
}

func hasAppends(ch domain.Change) bool {
	return len(ch.AppendedLogs) > 0 || len(ch.AppendedEjections) > 0 ||
		len(ch.AppendedRejections) > 0 || len(ch.AppendedPeriodic) > 0 ||
		len(ch.AppendedPatrols) > 0
}

// mutate runs a capacity/log operation against the in-memory session and
// queues the resulting remote writes. It never fails on a disconnected
// store; the only refusals are teardown and a missing session.
func (e *Engine) mutate(fn func(s *domain.Session, now time.Time) (domain.Change, error)) error {
	e.mu.Lock()
	if e.state == StateTornDown {
		e.mu.Unlock()
		return domain.ErrTornDown
	}
	if e.session == nil {
		// Still connecting with nothing cached; fabricate the shift locally
		// rather than refuse a door count.
		e.session = e.seed(e.key.ShiftDate)
	}
	now := e.clk.Now()
	ch, err := fn(e.session, now)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.lastTouch = now
	key := e.key
	snap := e.session.Clone()
	e.notifyLocked(snap)
	e.queueChange(key, ch, now)
	e.mu.Unlock()

	setCapacityGauge(key.VenueID, snap.CurrentCapacity)
	return nil
}

func (e *Engine) Increment() error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.Increment(now), nil
	})
}

func (e *Engine) Decrement() error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.Decrement(now), nil
	})
}

func (e *Engine) SetAbsolute(value int) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.SetAbsolute(now, value), nil
	})
}

func (e *Engine) SyncBulkCounts(targetIn, targetOut int) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.SyncBulkCounts(now, targetIn, targetOut), nil
	})
}

func (e *Engine) RecordPeriodicCheck(timeLabel string, countIn, countOut, countTotal int) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.RecordPeriodicCheck(now, uuid.NewString(), timeLabel, countIn, countOut, countTotal)
	})
}

func (e *Engine) ResetClickers() error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.ResetClickers(now), nil
	})
}

func (e *Engine) ToggleChecklistItem(listID, itemID string) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.ToggleChecklistItem(now, listID, itemID)
	})
}

func (e *Engine) RecordEjection(description, narrative string, policeCalled, injuries bool, custom map[string]string) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.RecordEjection(now, domain.NewEjectionEvent(now, description, narrative, policeCalled, injuries, custom)), nil
	})
}

func (e *Engine) RecordRejection(reason domain.RejectionReason) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.RecordRejection(now, reason), nil
	})
}

func (e *Engine) RecordPatrol(area string) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.RecordPatrol(now, area), nil
	})
}

func (e *Engine) DeleteEjection(id string) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.DeleteEjection(now, id)
	})
}

func (e *Engine) DeletePeriodic(id string) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.DeletePeriodic(now, id)
	})
}

func (e *Engine) SetBriefing(b *domain.Briefing) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.SetBriefing(now, b), nil
	})
}

func (e *Engine) SetMaxCapacity(max int) error {
	return e.mutate(func(s *domain.Session, now time.Time) (domain.Change, error) {
		return s.SetMaxCapacity(now, max), nil
	})
}

// ReplaceSession swaps the whole document, locally and remotely. Used by
// the manual end-shift reset, which clears tonight's data without
// advancing the shift identifier.
func (e *Engine) ReplaceSession(s *domain.Session) error {
	e.mu.Lock()
	if e.state == StateTornDown {
		e.mu.Unlock()
		return domain.ErrTornDown
	}
	e.session = s.Clone()
	e.lastTouch = e.clk.Now()
	key := e.key
	snap := e.session.Clone()
	e.notifyLocked(snap)
	e.enqueue(writeOp{kind: writePut, key: key, doc: s.Clone()})
	e.mu.Unlock()

	setCapacityGauge(key.VenueID, snap.CurrentCapacity)
	return nil
}

// Session returns a copy of the current in-memory session, or nil while
// still connecting with nothing cached.
func (e *Engine) Session() *domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsLive and IsLoading form the status pair surfaced to the UI.
func (e *Engine) IsLive() bool { return e.State() == StateLive }

func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateConnecting && e.session == nil
}

func (e *Engine) ShiftDate() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.key.ShiftDate
}

func (e *Engine) Venue() domain.Venue { return e.venue }

// LastInteraction supports the inactivity watchdog.
func (e *Engine) LastInteraction() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTouch
}

// Subscribe registers a local snapshot listener (websocket feed, lifecycle
// manager). The returned cancel must be called to release the channel.
func (e *Engine) Subscribe() (<-chan *domain.Session, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan *domain.Session, 8)
	if e.state != StateTornDown {
		e.subs[id] = ch
	} else {
		close(ch)
	}
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

func (e *Engine) notifyLocked(snap *domain.Session) {
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			// Slow consumer; it will catch up on the next snapshot.
		}
	}
}
