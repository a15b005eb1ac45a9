package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 14, 22, 30, 0, 0, time.UTC)

func newTestSession() *Session {
	return NewSession("2024-03-14", "The Velvet Room", 450,
		[]string{"Fire exits clear", "Radios charged"},
		[]string{"Venue empty", "Doors locked"})
}

func TestSession_IncrementDecrement(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	for i := 0; i < 5; i++ {
		s.Increment(testNow)
	}
	s.Decrement(testNow)
	s.Decrement(testNow)

	assert.Equal(t, 3, s.CurrentCapacity)
	assert.Len(t, s.Logs, 7, "every tap is logged, including decrements")
	assert.Equal(t, 5, SumByDirection(s.Logs, DirectionIn))
	assert.Equal(t, 2, SumByDirection(s.Logs, DirectionOut))
}

func TestSession_DecrementFloorsAtZero(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.Decrement(testNow)
	s.Decrement(testNow)

	assert.Equal(t, 0, s.CurrentCapacity)
	assert.Len(t, s.Logs, 2, "over-clicks are still logged")
}

func TestSession_SetAbsolute(t *testing.T) {
	t.Parallel()

	t.Run("downward correction appends one out event", func(t *testing.T) {
		s := newTestSession()
		for i := 0; i < 10; i++ {
			s.Increment(testNow)
		}

		ch := s.SetAbsolute(testNow, 4)

		assert.Equal(t, 4, s.CurrentCapacity)
		require.Len(t, ch.AppendedLogs, 1)
		assert.Equal(t, DirectionOut, ch.AppendedLogs[0].Direction)
		assert.Equal(t, 6, ch.AppendedLogs[0].Count)
		assert.Len(t, s.Logs, 11)
	})

	t.Run("upward correction appends one in event", func(t *testing.T) {
		s := newTestSession()
		ch := s.SetAbsolute(testNow, 12)

		assert.Equal(t, 12, s.CurrentCapacity)
		require.Len(t, ch.AppendedLogs, 1)
		assert.Equal(t, DirectionIn, ch.AppendedLogs[0].Direction)
		assert.Equal(t, 12, ch.AppendedLogs[0].Count)
	})

	t.Run("no-op when value is unchanged", func(t *testing.T) {
		s := newTestSession()
		s.Increment(testNow)
		ch := s.SetAbsolute(testNow, 1)
		assert.Empty(t, ch.AppendedLogs)
		assert.Len(t, s.Logs, 1)
	})

	t.Run("negative target clamps to zero", func(t *testing.T) {
		s := newTestSession()
		s.Increment(testNow)
		s.SetAbsolute(testNow, -5)
		assert.Equal(t, 0, s.CurrentCapacity)
	})
}

func TestSession_SyncBulkCounts(t *testing.T) {
	t.Parallel()

	t.Run("appends at most one corrective event per direction", func(t *testing.T) {
		s := newTestSession()
		s.Increment(testNow)
		s.Increment(testNow)

		ch := s.SyncBulkCounts(testNow, 40, 15)

		require.Len(t, ch.AppendedLogs, 2)
		assert.Equal(t, 40, SumByDirection(s.Logs, DirectionIn))
		assert.Equal(t, 15, SumByDirection(s.Logs, DirectionOut))
		assert.Equal(t, 25, s.CurrentCapacity)
	})

	t.Run("idempotent for identical targets", func(t *testing.T) {
		s := newTestSession()
		s.SyncBulkCounts(testNow, 40, 15)
		before := len(s.Logs)

		ch := s.SyncBulkCounts(testNow, 40, 15)

		assert.Empty(t, ch.AppendedLogs)
		assert.Empty(t, ch.MergedFields)
		assert.Len(t, s.Logs, before)
	})

	t.Run("over-counted direction gets a negative correction", func(t *testing.T) {
		s := newTestSession()
		for i := 0; i < 10; i++ {
			s.Increment(testNow)
		}

		ch := s.SyncBulkCounts(testNow, 6, 0)

		require.Len(t, ch.AppendedLogs, 1)
		assert.Equal(t, -4, ch.AppendedLogs[0].Count)
		assert.Equal(t, 6, SumByDirection(s.Logs, DirectionIn))
		assert.Equal(t, 6, s.CurrentCapacity)
	})

	t.Run("capacity clamps when out exceeds in", func(t *testing.T) {
		s := newTestSession()
		s.SyncBulkCounts(testNow, 3, 8)
		assert.Equal(t, 0, s.CurrentCapacity)
		assert.Equal(t, 3, SumByDirection(s.Logs, DirectionIn))
		assert.Equal(t, 8, SumByDirection(s.Logs, DirectionOut))
	})
}

func TestSession_RecordPeriodicCheck(t *testing.T) {
	t.Parallel()

	t.Run("reconciles counters and appends the snapshot", func(t *testing.T) {
		s := newTestSession()
		ch, err := s.RecordPeriodicCheck(testNow, "chk-1", "22:30", 120, 30, 90)
		require.NoError(t, err)

		require.Len(t, ch.AppendedPeriodic, 1)
		assert.Equal(t, "22:30", ch.AppendedPeriodic[0].TimeLabel)
		assert.Equal(t, 120, SumByDirection(s.Logs, DirectionIn))
		assert.Equal(t, 30, SumByDirection(s.Logs, DirectionOut))
		assert.Equal(t, 90, s.CurrentCapacity)
	})

	t.Run("rejects a duplicate time label", func(t *testing.T) {
		s := newTestSession()
		_, err := s.RecordPeriodicCheck(testNow, "chk-1", "23:00", 10, 2, 8)
		require.NoError(t, err)

		_, err = s.RecordPeriodicCheck(testNow, "chk-2", "23:00", 11, 2, 9)
		assert.ErrorIs(t, err, ErrDuplicatePeriodicCheck)
		assert.Len(t, s.PeriodicLogs, 1)
	})
}

func TestSession_ResetClickers(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.Increment(testNow)
	s.Increment(testNow)
	_, err := s.RecordPeriodicCheck(testNow, "chk-1", "22:00", 2, 0, 2)
	require.NoError(t, err)

	ch := s.ResetClickers(testNow)

	assert.Empty(t, s.Logs)
	assert.Equal(t, 0, s.CurrentCapacity)
	assert.Len(t, s.PeriodicLogs, 1, "periodic checks are the audit trail and survive a reset")
	assert.Contains(t, ch.ReplacedFields, FieldLogs)
	assert.Equal(t, 0, ch.MergedFields[FieldCurrentCapacity])
}

func TestSession_ToggleChecklistItem(t *testing.T) {
	t.Parallel()

	t.Run("check stamps, uncheck clears", func(t *testing.T) {
		s := newTestSession()
		id := s.PreEventChecks[0].ID

		ch, err := s.ToggleChecklistItem(testNow, ChecklistPreEvent, id)
		require.NoError(t, err)
		assert.True(t, s.PreEventChecks[0].Checked)
		require.NotNil(t, s.PreEventChecks[0].Timestamp)
		assert.Equal(t, testNow, *s.PreEventChecks[0].Timestamp)
		assert.Contains(t, ch.ReplacedFields, ChecklistPreEvent)

		_, err = s.ToggleChecklistItem(testNow.Add(time.Minute), ChecklistPreEvent, id)
		require.NoError(t, err)
		assert.False(t, s.PreEventChecks[0].Checked)
		assert.Nil(t, s.PreEventChecks[0].Timestamp)
	})

	t.Run("unknown list", func(t *testing.T) {
		s := newTestSession()
		_, err := s.ToggleChecklistItem(testNow, "midEventChecks", "x")
		assert.ErrorIs(t, err, ErrChecklistNotFound)
	})

	t.Run("unknown item", func(t *testing.T) {
		s := newTestSession()
		_, err := s.ToggleChecklistItem(testNow, ChecklistPostEvent, "postEventChecks-99")
		assert.ErrorIs(t, err, ErrChecklistItemNotFound)
	})
}

func TestSession_EjectionLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	ev := NewEjectionEvent(testNow, "Fight on dance floor", "Two patrons separated and removed", true, false, nil)
	s.RecordEjection(testNow, ev)
	require.Len(t, s.Ejections, 1)

	t.Run("delete unknown id", func(t *testing.T) {
		_, err := s.DeleteEjection(testNow, "nope")
		assert.ErrorIs(t, err, ErrEjectionNotFound)
	})

	t.Run("delete removes and replaces the array", func(t *testing.T) {
		ch, err := s.DeleteEjection(testNow, ev.ID)
		require.NoError(t, err)
		assert.Empty(t, s.Ejections)
		assert.Contains(t, ch.ReplacedFields, FieldEjections)
	})
}

func TestSession_IsEmpty(t *testing.T) {
	t.Parallel()

	t.Run("fresh session is empty", func(t *testing.T) {
		assert.True(t, newTestSession().IsEmpty())
	})

	mutations := map[string]func(s *Session){
		"capacity event": func(s *Session) { s.Increment(testNow) },
		"ejection": func(s *Session) {
			s.RecordEjection(testNow, NewEjectionEvent(testNow, "d", "n", false, false, nil))
		},
		"rejection": func(s *Session) { s.RecordRejection(testNow, RejectionNoID) },
		"periodic check": func(s *Session) {
			_, _ = s.RecordPeriodicCheck(testNow, "chk-1", "22:00", 0, 0, 0)
		},
		"patrol": func(s *Session) { s.RecordPatrol(testNow, "smoking area") },
		"checked pre-event item": func(s *Session) {
			_, _ = s.ToggleChecklistItem(testNow, ChecklistPreEvent, s.PreEventChecks[0].ID)
		},
		"checked post-event item": func(s *Session) {
			_, _ = s.ToggleChecklistItem(testNow, ChecklistPostEvent, s.PostEventChecks[0].ID)
		},
		"briefing": func(s *Session) {
			s.SetBriefing(testNow, &Briefing{Text: "Watch the fire exit", Priority: BriefingInfo})
		},
		"nonzero capacity": func(s *Session) { s.CurrentCapacity = 4 },
	}
	for name, mutate := range mutations {
		t.Run(name+" makes it non-empty", func(t *testing.T) {
			s := newTestSession()
			mutate(s)
			assert.False(t, s.IsEmpty())
		})
	}

	t.Run("reset after activity leaves periodic logs and stays non-empty", func(t *testing.T) {
		s := newTestSession()
		s.Increment(testNow)
		_, err := s.RecordPeriodicCheck(testNow, "chk-1", "22:00", 1, 0, 1)
		require.NoError(t, err)
		s.ResetClickers(testNow)
		assert.False(t, s.IsEmpty())
	})
}

func TestSession_Clone(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.Increment(testNow)
	s.SetBriefing(testNow, &Briefing{Text: "x", Priority: BriefingUrgent})

	cp := s.Clone()
	cp.Increment(testNow)
	cp.Briefing.Text = "changed"
	cp.PreEventChecks[0].Checked = true

	assert.Len(t, s.Logs, 1)
	assert.Equal(t, "x", s.Briefing.Text)
	assert.False(t, s.PreEventChecks[0].Checked)

	var nilSession *Session
	assert.Nil(t, nilSession.Clone())
}
