package domain

import "time"

// Session document field names, shared between the aggregate's change
// reports and the remote store's partial writes.
const (
	FieldLogs            = "logs"
	FieldEjections       = "ejections"
	FieldRejections      = "rejections"
	FieldPeriodicLogs    = "periodicLogs"
	FieldPatrolLogs      = "patrolLogs"
	FieldCurrentCapacity = "currentCapacity"
	FieldMaxCapacity     = "maxCapacity"
	FieldPreEventChecks  = "preEventChecks"
	FieldPostEventChecks = "postEventChecks"
	FieldBriefing        = "briefing"
	FieldLastUpdated     = "lastUpdated"
)

type BriefingPriority string

const (
	BriefingInfo      BriefingPriority = "info"
	BriefingImportant BriefingPriority = "important"
	BriefingUrgent    BriefingPriority = "urgent"
)

type Briefing struct {
	Text      string           `json:"text"`
	Priority  BriefingPriority `json:"priority"`
	SetBy     string           `json:"setBy"`
	Timestamp time.Time        `json:"timestamp"`
}

// Session is the live mutable record of one shift, identified by ShiftDate.
// CurrentCapacity is a cached derivation of the capacity log; the log is
// authoritative whenever the two disagree.
type Session struct {
	ShiftDate       string               `json:"shiftDate"`
	VenueName       string               `json:"venueName"`
	MaxCapacity     int                  `json:"maxCapacity"`
	CurrentCapacity int                  `json:"currentCapacity"`
	Logs            []CapacityEvent      `json:"logs"`
	Ejections       []EjectionEvent      `json:"ejections"`
	Rejections      []RejectionEvent     `json:"rejections"`
	PeriodicLogs    []PeriodicCheckEvent `json:"periodicLogs"`
	PatrolLogs      []PatrolEvent        `json:"patrolLogs"`
	PreEventChecks  []ChecklistItem      `json:"preEventChecks"`
	PostEventChecks []ChecklistItem      `json:"postEventChecks"`
	Briefing        *Briefing            `json:"briefing,omitempty"`
	LastUpdated     time.Time            `json:"lastUpdated"`
}

// NewSession seeds an empty session for a shift from venue defaults.
func NewSession(shiftDate, venueName string, maxCapacity int, preLabels, postLabels []string) *Session {
	return &Session{
		ShiftDate:       shiftDate,
		VenueName:       venueName,
		MaxCapacity:     maxCapacity,
		Logs:            []CapacityEvent{},
		Ejections:       []EjectionEvent{},
		Rejections:      []RejectionEvent{},
		PeriodicLogs:    []PeriodicCheckEvent{},
		PatrolLogs:      []PatrolEvent{},
		PreEventChecks:  SeedChecklist(ChecklistPreEvent, preLabels),
		PostEventChecks: SeedChecklist(ChecklistPostEvent, postLabels),
	}
}

// Change describes what a mutation did to the aggregate, in terms the sync
// engine can translate into remote writes. AppendedLogs and friends are
// safe to union-append concurrently; ReplacedFields must be written as
// whole-field overwrites and are not race-safe across devices.
type Change struct {
	AppendedLogs       []CapacityEvent
	AppendedEjections  []EjectionEvent
	AppendedRejections []RejectionEvent
	AppendedPeriodic   []PeriodicCheckEvent
	AppendedPatrols    []PatrolEvent
	MergedFields       map[string]any
	ReplacedFields     map[string]any
}

func (c *Change) merge(field string, v any) {
	if c.MergedFields == nil {
		c.MergedFields = map[string]any{}
	}
	c.MergedFields[field] = v
}

func (c *Change) replace(field string, v any) {
	if c.ReplacedFields == nil {
		c.ReplacedFields = map[string]any{}
	}
	c.ReplacedFields[field] = v
}

// Increment appends one in-event and bumps the cached capacity.
func (s *Session) Increment(now time.Time) Change {
	ev := CapacityEvent{Timestamp: now, Direction: DirectionIn, Count: 1}
	s.Logs = append(s.Logs, ev)
	s.CurrentCapacity++
	s.LastUpdated = now

	var ch Change
	ch.AppendedLogs = []CapacityEvent{ev}
	ch.merge(FieldCurrentCapacity, s.CurrentCapacity)
	return ch
}

// Decrement appends one out-event; the cached capacity never goes below
// zero even if the door staff over-click.
func (s *Session) Decrement(now time.Time) Change {
	ev := CapacityEvent{Timestamp: now, Direction: DirectionOut, Count: 1}
	s.Logs = append(s.Logs, ev)
	if s.CurrentCapacity > 0 {
		s.CurrentCapacity--
	}
	s.LastUpdated = now

	var ch Change
	ch.AppendedLogs = []CapacityEvent{ev}
	ch.merge(FieldCurrentCapacity, s.CurrentCapacity)
	return ch
}

// SetAbsolute is the manual-correction path: one synthetic event records
// the magnitude and direction of the correction, and the cached capacity is
// set directly rather than derived.
func (s *Session) SetAbsolute(now time.Time, newValue int) Change {
	if newValue < 0 {
		newValue = 0
	}
	diff := newValue - s.CurrentCapacity
	if diff == 0 {
		return Change{}
	}

	dir := DirectionIn
	if diff < 0 {
		dir = DirectionOut
		diff = -diff
	}
	ev := CapacityEvent{Timestamp: now, Direction: dir, Count: diff}
	s.Logs = append(s.Logs, ev)
	s.CurrentCapacity = newValue
	s.LastUpdated = now

	var ch Change
	ch.AppendedLogs = []CapacityEvent{ev}
	ch.merge(FieldCurrentCapacity, s.CurrentCapacity)
	return ch
}

// SyncBulkCounts reconciles two independently tracked clicker totals
// against the log, appending at most one corrective event per direction.
// Calling twice with the same targets appends nothing the second time.
func (s *Session) SyncBulkCounts(now time.Time, targetIn, targetOut int) Change {
	var ch Change

	if diffIn := targetIn - SumByDirection(s.Logs, DirectionIn); diffIn != 0 {
		ch.AppendedLogs = append(ch.AppendedLogs, s.appendCorrection(now, DirectionIn, diffIn))
	}
	if diffOut := targetOut - SumByDirection(s.Logs, DirectionOut); diffOut != 0 {
		ch.AppendedLogs = append(ch.AppendedLogs, s.appendCorrection(now, DirectionOut, diffOut))
	}

	capacity := targetIn - targetOut
	if capacity < 0 {
		capacity = 0
	}
	if len(ch.AppendedLogs) > 0 || capacity != s.CurrentCapacity {
		s.CurrentCapacity = capacity
		s.LastUpdated = now
		ch.merge(FieldCurrentCapacity, s.CurrentCapacity)
	}
	return ch
}

// appendCorrection records a signed counter delta as one event on the
// direction being corrected. The count may be negative when that direction
// was over-counted: an append-only log cannot shrink, so the negative entry
// is what makes SumByDirection land exactly on the target.
func (s *Session) appendCorrection(now time.Time, dir Direction, diff int) CapacityEvent {
	ev := CapacityEvent{Timestamp: now, Direction: dir, Count: diff}
	s.Logs = append(s.Logs, ev)
	return ev
}

// RecordPeriodicCheck runs the same reconciliation as SyncBulkCounts and
// then appends one audited snapshot. A repeated time label is rejected so
// each half-hour slot has at most one check.
func (s *Session) RecordPeriodicCheck(now time.Time, id, timeLabel string, countIn, countOut, countTotal int) (Change, error) {
	for _, p := range s.PeriodicLogs {
		if p.TimeLabel == timeLabel {
			return Change{}, ErrDuplicatePeriodicCheck
		}
	}

	ch := s.SyncBulkCounts(now, countIn, countOut)

	check := PeriodicCheckEvent{
		ID:         id,
		Timestamp:  now,
		TimeLabel:  timeLabel,
		CountIn:    countIn,
		CountOut:   countOut,
		CountTotal: countTotal,
	}
	s.PeriodicLogs = append(s.PeriodicLogs, check)
	s.LastUpdated = now
	ch.AppendedPeriodic = []PeriodicCheckEvent{check}
	return ch, nil
}

// ResetClickers clears the capacity log and zeroes the cached capacity.
// Periodic logs survive: they are the audit trail, clicker state is
// ephemeral.
func (s *Session) ResetClickers(now time.Time) Change {
	s.Logs = []CapacityEvent{}
	s.CurrentCapacity = 0
	s.LastUpdated = now

	var ch Change
	ch.replace(FieldLogs, s.Logs)
	ch.merge(FieldCurrentCapacity, 0)
	return ch
}

// ToggleChecklistItem flips one item and stamps or clears its timestamp.
// The whole list is replaced on the wire; items are a small fixed set.
func (s *Session) ToggleChecklistItem(now time.Time, listID, itemID string) (Change, error) {
	var list *[]ChecklistItem
	switch listID {
	case ChecklistPreEvent:
		list = &s.PreEventChecks
	case ChecklistPostEvent:
		list = &s.PostEventChecks
	default:
		return Change{}, ErrChecklistNotFound
	}

	for i := range *list {
		if (*list)[i].ID != itemID {
			continue
		}
		(*list)[i].Checked = !(*list)[i].Checked
		if (*list)[i].Checked {
			ts := now
			(*list)[i].Timestamp = &ts
		} else {
			(*list)[i].Timestamp = nil
		}
		s.LastUpdated = now

		var ch Change
		ch.replace(listID, append([]ChecklistItem{}, *list...))
		return ch, nil
	}
	return Change{}, ErrChecklistItemNotFound
}

func (s *Session) RecordEjection(now time.Time, ev EjectionEvent) Change {
	s.Ejections = append(s.Ejections, ev)
	s.LastUpdated = now
	return Change{AppendedEjections: []EjectionEvent{ev}}
}

func (s *Session) RecordRejection(now time.Time, reason RejectionReason) Change {
	ev := RejectionEvent{Timestamp: now, Reason: reason}
	s.Rejections = append(s.Rejections, ev)
	s.LastUpdated = now
	return Change{AppendedRejections: []RejectionEvent{ev}}
}

func (s *Session) RecordPatrol(now time.Time, area string) Change {
	ev := PatrolEvent{Timestamp: now, Area: area}
	s.PatrolLogs = append(s.PatrolLogs, ev)
	s.LastUpdated = now
	return Change{AppendedPatrols: []PatrolEvent{ev}}
}

// DeleteEjection removes one incident record. Deletion is a whole-array
// replace on the wire and is not race-safe against concurrent appends.
func (s *Session) DeleteEjection(now time.Time, id string) (Change, error) {
	next, removed := RemoveEjectionByID(s.Ejections, id)
	if !removed {
		return Change{}, ErrEjectionNotFound
	}
	s.Ejections = next
	s.LastUpdated = now

	var ch Change
	ch.replace(FieldEjections, s.Ejections)
	return ch, nil
}

func (s *Session) DeletePeriodic(now time.Time, id string) (Change, error) {
	next, removed := RemovePeriodicByID(s.PeriodicLogs, id)
	if !removed {
		return Change{}, ErrPeriodicNotFound
	}
	s.PeriodicLogs = next
	s.LastUpdated = now

	var ch Change
	ch.replace(FieldPeriodicLogs, s.PeriodicLogs)
	return ch, nil
}

func (s *Session) SetBriefing(now time.Time, b *Briefing) Change {
	s.Briefing = b
	s.LastUpdated = now

	var ch Change
	ch.replace(FieldBriefing, b)
	return ch
}

func (s *Session) SetMaxCapacity(now time.Time, max int) Change {
	s.MaxCapacity = max
	s.LastUpdated = now

	var ch Change
	ch.merge(FieldMaxCapacity, max)
	return ch
}

// IsEmpty reports whether the shift recorded no activity at all. The check
// enumerates every event sequence and both checklists; a single checked box
// makes the shift worth keeping.
func (s *Session) IsEmpty() bool {
	if len(s.Logs) > 0 || len(s.Ejections) > 0 || len(s.Rejections) > 0 ||
		len(s.PeriodicLogs) > 0 || len(s.PatrolLogs) > 0 {
		return false
	}
	for _, item := range s.PreEventChecks {
		if item.Checked {
			return false
		}
	}
	for _, item := range s.PostEventChecks {
		if item.Checked {
			return false
		}
	}
	if s.Briefing != nil {
		return false
	}
	return s.CurrentCapacity == 0
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Logs = append([]CapacityEvent{}, s.Logs...)
	cp.Ejections = append([]EjectionEvent{}, s.Ejections...)
	cp.Rejections = append([]RejectionEvent{}, s.Rejections...)
	cp.PeriodicLogs = append([]PeriodicCheckEvent{}, s.PeriodicLogs...)
	cp.PatrolLogs = append([]PatrolEvent{}, s.PatrolLogs...)
	cp.PreEventChecks = append([]ChecklistItem{}, s.PreEventChecks...)
	cp.PostEventChecks = append([]ChecklistItem{}, s.PostEventChecks...)
	if s.Briefing != nil {
		b := *s.Briefing
		cp.Briefing = &b
	}
	return &cp
}
