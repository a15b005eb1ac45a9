package clock

import "time"

const shiftDateLayout = "2006-01-02"

// ShiftDate returns the business-day identifier for a timestamp. A shift
// runs past midnight, so anything before noon still belongs to the previous
// calendar day: a 2am ejection is part of last night's shift.
func ShiftDate(t time.Time) string {
	if t.Hour() < 12 {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format(shiftDateLayout)
}

// RolledOver reports whether now has crossed into a different shift than
// the one identified by current.
func RolledOver(current string, now time.Time) bool {
	return current != "" && ShiftDate(now) != current
}
