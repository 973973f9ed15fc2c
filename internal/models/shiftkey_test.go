package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShiftKeyNormalisesToMidnightUTC(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	key := NewShiftKey(time.Date(2026, 9, 7, 15, 30, 0, 0, loc), "slot-am", "room-a")
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), key.Date)
}

func TestShiftKeyDayOfWeekUsesISONumbering(t *testing.T) {
	monday := NewShiftKey(time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), "slot-am", "")
	sunday := NewShiftKey(time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC), "slot-am", "")
	assert.Equal(t, 1, monday.DayOfWeek())
	assert.Equal(t, 7, sunday.DayOfWeek())
}

func TestShiftKeySlotKeyIgnoresClassroom(t *testing.T) {
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	roomA := NewShiftKey(date, "slot-am", "room-a")
	roomB := NewShiftKey(date, "slot-am", "room-b")
	assert.Equal(t, "2026-09-07|slot-am", roomA.SlotKey())
	assert.Equal(t, roomA.SlotKey(), roomB.SlotKey())
	assert.True(t, roomA.SameSlot(roomB))
	assert.False(t, roomA.Equal(roomB))
	assert.Equal(t, "2026-09-07|slot-am|room-a", roomA.String())
}

func TestShiftKeyLessOrdersDateSlotClassroom(t *testing.T) {
	mon := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	tue := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a, b ShiftKey
		want bool
	}{
		{name: "earlier date wins", a: NewShiftKey(mon, "slot-pm", "z"), b: NewShiftKey(tue, "slot-am", "a"), want: true},
		{name: "same date compares slot", a: NewShiftKey(mon, "slot-am", "z"), b: NewShiftKey(mon, "slot-pm", "a"), want: true},
		{name: "same slot compares classroom", a: NewShiftKey(mon, "slot-am", "room-a"), b: NewShiftKey(mon, "slot-am", "room-b"), want: true},
		{name: "identical keys are not less", a: NewShiftKey(mon, "slot-am", "room-a"), b: NewShiftKey(mon, "slot-am", "room-a"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Less(tc.b))
		})
	}
}

func TestParseShiftDateRejectsMalformedInput(t *testing.T) {
	_, err := ParseShiftDate("07-09-2026")
	assert.Error(t, err)

	parsed, err := ParseShiftDate("2026-09-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), parsed)
}
