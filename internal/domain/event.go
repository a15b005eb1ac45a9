package domain

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type RejectionReason string

const (
	RejectionIntoxicated RejectionReason = "intoxicated"
	RejectionNoID        RejectionReason = "no_id"
	RejectionDressCode   RejectionReason = "dress_code"
	RejectionBanned      RejectionReason = "banned"
	RejectionCapacity    RejectionReason = "at_capacity"
	RejectionOther       RejectionReason = "other"
)

// CapacityEvent is a single clicker movement. Count is 1 for a manual tap
// and may be larger for bulk corrections.
type CapacityEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
	Count     int       `json:"count"`
}

type RejectionEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	Reason    RejectionReason `json:"reason"`
}

// EjectionEvent is a formal incident record for a patron removed from the
// venue. Unlike capacity events it carries an ID so it can be deleted after
// a confirmed mistake.
type EjectionEvent struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Description  string            `json:"description"`
	Narrative    string            `json:"narrative"`
	PoliceCalled bool              `json:"policeCalled"`
	Injuries     bool              `json:"injuries"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

// PeriodicCheckEvent is a half-hourly audited snapshot of the counters.
// At most one exists per TimeLabel per shift.
type PeriodicCheckEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	TimeLabel  string    `json:"timeLabel"`
	CountIn    int       `json:"countIn"`
	CountOut   int       `json:"countOut"`
	CountTotal int       `json:"countTotal"`
}

type PatrolEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Area      string    `json:"area"`
}

func NewCapacityEvent(ts time.Time, dir Direction, count int) (CapacityEvent, error) {
	if dir != DirectionIn && dir != DirectionOut {
		return CapacityEvent{}, ErrInvalidDirection
	}
	if count < 1 {
		return CapacityEvent{}, ErrInvalidCount
	}
	return CapacityEvent{Timestamp: ts, Direction: dir, Count: count}, nil
}

func NewEjectionEvent(ts time.Time, description, narrative string, policeCalled, injuries bool, custom map[string]string) EjectionEvent {
	return EjectionEvent{
		ID:           uuid.NewString(),
		Timestamp:    ts,
		Description:  description,
		Narrative:    narrative,
		PoliceCalled: policeCalled,
		Injuries:     injuries,
		CustomFields: custom,
	}
}

// SumByDirection reduces the full capacity log. The cached capacity on the
// session is an optimization; this sum is the source of truth and is what
// bulk reconciliation diffs against.
func SumByDirection(events []CapacityEvent, dir Direction) int {
	total := 0
	for _, e := range events {
		if e.Direction == dir {
			total += e.Count
		}
	}
	return total
}

// RemoveEjectionByID returns the sequence without the matching entry.
// The second return reports whether anything was removed.
func RemoveEjectionByID(events []EjectionEvent, id string) ([]EjectionEvent, bool) {
	out := make([]EjectionEvent, 0, len(events))
	removed := false
	for _, e := range events {
		if e.ID == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

func RemovePeriodicByID(events []PeriodicCheckEvent, id string) ([]PeriodicCheckEvent, bool) {
	out := make([]PeriodicCheckEvent, 0, len(events))
	removed := false
	for _, e := range events {
		if e.ID == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}
