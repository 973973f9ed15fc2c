package models

import "time"

// WeeklyAvailability is the recurring layer of a candidate's availability,
// keyed by day of week and time slot.
type WeeklyAvailability struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	StaffID    string    `db:"staff_id" json:"staff_id"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	Available  bool      `db:"available" json:"available"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AvailabilityException is the date-specific layer. When a row exists for a
// (date, time_slot) it overrides the weekly layer entirely; absence of a row
// defers to the weekly layer, it never means unavailable.
type AvailabilityException struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	StaffID    string    `db:"staff_id" json:"staff_id"`
	Date       time.Time `db:"date" json:"date"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	Available  bool      `db:"available" json:"available"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ShiftStatus is the single per-shift verdict for a candidate after all
// constraint sources are merged.
type ShiftStatus string

const (
	ShiftStatusAvailable        ShiftStatus = "available"
	ShiftStatusUnavailable      ShiftStatus = "unavailable"
	ShiftStatusConflictTeaching ShiftStatus = "conflict_teaching"
	ShiftStatusConflictSub      ShiftStatus = "conflict_sub"
)

// IsConflict reports whether the status is a scheduling conflict rather than
// plain unavailability.
func (s ShiftStatus) IsConflict() bool {
	return s == ShiftStatusConflictTeaching || s == ShiftStatusConflictSub
}

// ShiftVerdict pairs a status with a user-facing message and optional metadata
// such as who the candidate is already covering.
type ShiftVerdict struct {
	Key      ShiftKey          `json:"key"`
	Status   ShiftStatus       `json:"status"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CoveringRef identifies the teacher and classroom a candidate already covers
// at a given shift, used to populate conflict_sub metadata.
type CoveringRef struct {
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	ClassroomID string `json:"classroom_id"`
}
