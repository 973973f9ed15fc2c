package models

import (
	"fmt"
	"time"
)

// DateLayout is the canonical wire format for shift dates.
const DateLayout = "2006-01-02"

// ShiftKey identifies one atomic unit of coverage: a date plus a time slot,
// optionally narrowed to a classroom. Classroom is significant for baseline
// grid placement but ignored when matching absence shifts against candidate
// schedules; consumers pick the granularity explicitly via SameSlot or Equal.
type ShiftKey struct {
	Date        time.Time `json:"date"`
	TimeSlotID  string    `json:"timeSlotId"`
	ClassroomID string    `json:"classroomId,omitempty"`
}

// NewShiftKey builds a key normalised to midnight UTC.
func NewShiftKey(date time.Time, timeSlotID, classroomID string) ShiftKey {
	return ShiftKey{
		Date:        time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		TimeSlotID:  timeSlotID,
		ClassroomID: classroomID,
	}
}

// ParseShiftDate parses a wire-format date into the normalised form.
func ParseShiftDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse shift date %q: %w", raw, err)
	}
	return t, nil
}

// Equal reports full equality including classroom.
func (k ShiftKey) Equal(other ShiftKey) bool {
	return k.Date.Equal(other.Date) && k.TimeSlotID == other.TimeSlotID && k.ClassroomID == other.ClassroomID
}

// SameSlot reports date + time-slot equality regardless of classroom.
func (k ShiftKey) SameSlot(other ShiftKey) bool {
	return k.Date.Equal(other.Date) && k.TimeSlotID == other.TimeSlotID
}

// Less orders keys by date, then time slot, then classroom. Deterministic
// ordering is relied on by the recommender's tie-breaking.
func (k ShiftKey) Less(other ShiftKey) bool {
	if !k.Date.Equal(other.Date) {
		return k.Date.Before(other.Date)
	}
	if k.TimeSlotID != other.TimeSlotID {
		return k.TimeSlotID < other.TimeSlotID
	}
	return k.ClassroomID < other.ClassroomID
}

// SlotKey returns the date+slot identity usable as a map key.
func (k ShiftKey) SlotKey() string {
	return k.Date.Format(DateLayout) + "|" + k.TimeSlotID
}

// String includes the classroom when present.
func (k ShiftKey) String() string {
	if k.ClassroomID == "" {
		return k.SlotKey()
	}
	return k.SlotKey() + "|" + k.ClassroomID
}

// DayOfWeek returns the ISO day index (Monday=1 .. Sunday=7).
func (k ShiftKey) DayOfWeek() int {
	wd := int(k.Date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// RecurringKey identifies a weekly recurring slot on the baseline grid.
type RecurringKey struct {
	DayOfWeek  int    `json:"dayOfWeek"`
	TimeSlotID string `json:"timeSlotId"`
}

// Recurring projects the shift key onto its weekly recurring identity.
func (k ShiftKey) Recurring() RecurringKey {
	return RecurringKey{DayOfWeek: k.DayOfWeek(), TimeSlotID: k.TimeSlotID}
}
