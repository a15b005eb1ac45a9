package domain

import (
	"strconv"
	"time"
)

const (
	ChecklistPreEvent  = "preEventChecks"
	ChecklistPostEvent = "postEventChecks"
)

// ChecklistItem belongs to a fixed-cardinality set seeded from the venue
// template. Timestamp is set when checked and cleared when unchecked.
type ChecklistItem struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Checked   bool       `json:"checked"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// SeedChecklist builds an unchecked checklist from venue template labels.
// Item IDs are positional so the same template yields the same IDs on every
// device, which keeps whole-list replacement stable across shifts.
func SeedChecklist(listID string, labels []string) []ChecklistItem {
	items := make([]ChecklistItem, 0, len(labels))
	for i, label := range labels {
		items = append(items, ChecklistItem{
			ID:    listID + "-" + strconv.Itoa(i),
			Label: label,
		})
	}
	return items
}
